package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

func appendChange(t *testing.T, db *DB, outbox OutboxRepository, change models.LocalChange) {
	t.Helper()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, outbox.AppendTx(ctx, tx, change))
	require.NoError(t, tx.Commit())
}

func TestOutboxRepository_OrderPreserved(t *testing.T) {
	db := newTestClientDB(t)
	outbox := NewOutboxRepository(db, logger.Nop())
	ctx := context.Background()

	ts := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	for i, op := range []models.Operation{models.OpCreate, models.OpUpdate, models.OpUpdate} {
		appendChange(t, db, outbox, models.LocalChange{
			Table:     models.TableItems,
			RecordID:  "item-1",
			Operation: op,
			Timestamp: ts.Add(time.Duration(i) * time.Second),
		})
	}

	changes, err := outbox.List(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// three edits of one record stay three entries, in enqueue order
	assert.Equal(t, models.OpCreate, changes[0].Operation)
	assert.Equal(t, models.OpUpdate, changes[1].Operation)
	assert.Equal(t, models.OpUpdate, changes[2].Operation)
	assert.Less(t, changes[0].ID, changes[1].ID)
	assert.Less(t, changes[1].ID, changes[2].ID)
}

func TestOutboxRepository_DeleteAcknowledged(t *testing.T) {
	db := newTestClientDB(t)
	outbox := NewOutboxRepository(db, logger.Nop())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		appendChange(t, db, outbox, models.LocalChange{
			Table: models.TableTrips, RecordID: id, Operation: models.OpCreate, Timestamp: time.Now().UTC(),
		})
	}

	changes, err := outbox.List(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	require.NoError(t, outbox.Delete(ctx, []int64{changes[0].ID, changes[1].ID}))

	remaining, err := outbox.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].RecordID)

	count, err := outbox.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOutboxRepository_DeleteEmptyIsNoOp(t *testing.T) {
	db := newTestClientDB(t)
	outbox := NewOutboxRepository(db, logger.Nop())

	assert.NoError(t, outbox.Delete(context.Background(), nil))
}

func TestOutboxRepository_Clear(t *testing.T) {
	db := newTestClientDB(t)
	outbox := NewOutboxRepository(db, logger.Nop())
	ctx := context.Background()

	appendChange(t, db, outbox, models.LocalChange{
		Table: models.TableOutfits, RecordID: "o1", Operation: models.OpDelete, Timestamp: time.Now().UTC(),
	})

	require.NoError(t, outbox.Clear(ctx))

	count, err := outbox.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
