package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/logger"
)

func TestAccountRepository_ConsumeMagicLink(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, logger.Nop())

	mock.ExpectQuery(consumeMagicLink).WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@example.com"))

	email, err := repo.ConsumeMagicLink(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ConsumeMagicLinkInvalid(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, logger.Nop())

	// an unknown, expired or reused token matches no row
	mock.ExpectQuery(consumeMagicLink).WithArgs("stale").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	_, err := repo.ConsumeMagicLink(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrMagicLinkInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateOrGetAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, logger.Nop())

	now := time.Now().UTC()
	mock.ExpectQuery(createAccount).WithArgs("ana@example.com", "ana").
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "email", "username", "version", "updated_at", "created_at"},
		).AddRow(int64(42), "ana@example.com", "ana", int64(0), now, now))

	account, err := repo.CreateOrGetAccount(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.UserID)
	assert.Equal(t, "ana", account.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SessionExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, logger.Nop())

	mock.ExpectQuery(sessionExists).WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.SessionExists(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
