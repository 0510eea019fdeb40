// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// accountRepository is the PostgreSQL-backed implementation of
// [AccountRepository]. It owns the accounts, magic_links and sessions tables.
type accountRepository struct {
	*DB
	logger *logger.Logger
}

// NewAccountRepository constructs an [AccountRepository] backed by the
// provided database connection and logger.
func NewAccountRepository(db *DB, logger *logger.Logger) AccountRepository {
	return &accountRepository{
		DB:     db,
		logger: logger,
	}
}

// CreateMagicLink stores a single-use sign-in token.
func (a *accountRepository) CreateMagicLink(ctx context.Context, token string, email string, expiresAt time.Time) error {
	log := logger.FromContext(ctx)

	if _, err := a.DB.ExecContext(ctx, createMagicLink, token, email, expiresAt); err != nil {
		log.Err(err).
			Str("func", "accountRepository.CreateMagicLink").
			Str("email", email).
			Msg("failed to store magic link")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// ConsumeMagicLink marks the token used and returns its email. The UPDATE
// predicate enforces single use and expiry in one statement, so two
// concurrent verifications cannot both succeed.
func (a *accountRepository) ConsumeMagicLink(ctx context.Context, token string) (string, error) {
	log := logger.FromContext(ctx)

	var email string
	err := a.DB.QueryRowContext(ctx, consumeMagicLink, token).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().
				Str("func", "accountRepository.ConsumeMagicLink").
				Msg("magic link unknown, expired or already used")
			return "", ErrMagicLinkInvalid
		}
		log.Err(err).
			Str("func", "accountRepository.ConsumeMagicLink").
			Msg("failed to consume magic link")
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return email, nil
}

// CreateOrGetAccount returns the account for email, creating it on first
// sign-in. The username defaults to the local part of the address.
func (a *accountRepository) CreateOrGetAccount(ctx context.Context, email string) (models.Account, error) {
	log := logger.FromContext(ctx)

	username := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}

	var account models.Account
	err := a.DB.QueryRowContext(ctx, createAccount, email, username).Scan(
		&account.UserID,
		&account.Email,
		&account.Username,
		&account.Version,
		&account.UpdatedAt,
		&account.CreatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "accountRepository.CreateOrGetAccount").
			Str("email", email).
			Msg("failed to create or fetch account")
		return models.Account{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return account, nil
}

// GetAccount returns the account by id, or [ErrAccountNotFound].
func (a *accountRepository) GetAccount(ctx context.Context, userID int64) (models.Account, error) {
	log := logger.FromContext(ctx)

	var account models.Account
	err := a.DB.QueryRowContext(ctx, getAccountByID, userID).Scan(
		&account.UserID,
		&account.Email,
		&account.Username,
		&account.Version,
		&account.UpdatedAt,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		log.Err(err).
			Str("func", "accountRepository.GetAccount").
			Int64("user_id", userID).
			Msg("failed to fetch account")
		return models.Account{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return account, nil
}

// CreateSession records an issued session id.
func (a *accountRepository) CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	log := logger.FromContext(ctx)

	if _, err := a.DB.ExecContext(ctx, createSession, sessionID, userID, expiresAt); err != nil {
		log.Err(err).
			Str("func", "accountRepository.CreateSession").
			Int64("user_id", userID).
			Msg("failed to store session")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// SessionExists reports whether a live session with the id is on record.
func (a *accountRepository) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	log := logger.FromContext(ctx)

	var exists bool
	if err := a.DB.QueryRowContext(ctx, sessionExists, sessionID).Scan(&exists); err != nil {
		log.Err(err).
			Str("func", "accountRepository.SessionExists").
			Msg("failed to check session existence")
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return exists, nil
}

// DeleteSession revokes a session id. Unknown ids succeed.
func (a *accountRepository) DeleteSession(ctx context.Context, sessionID string) error {
	log := logger.FromContext(ctx)

	if _, err := a.DB.ExecContext(ctx, deleteSession, sessionID); err != nil {
		log.Err(err).
			Str("func", "accountRepository.DeleteSession").
			Msg("failed to delete session")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// PurgeExpired removes expired sessions plus expired or consumed magic links.
func (a *accountRepository) PurgeExpired(ctx context.Context, now time.Time) error {
	log := logger.FromContext(ctx)

	if _, err := a.DB.ExecContext(ctx, purgeExpiredSessions, now); err != nil {
		log.Err(err).
			Str("func", "accountRepository.PurgeExpired").
			Msg("failed to purge expired sessions")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if _, err := a.DB.ExecContext(ctx, purgeExpiredMagicLinks, now); err != nil {
		log.Err(err).
			Str("func", "accountRepository.PurgeExpired").
			Msg("failed to purge expired magic links")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
