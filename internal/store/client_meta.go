package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// metaRepository is the SQLite-backed implementation of [MetaRepository].
// The sync_meta table holds at most one row (id = 1).
type metaRepository struct {
	*DB
	logger *logger.Logger
}

// NewMetaRepository constructs a [MetaRepository] backed by the provided
// local database connection and logger.
func NewMetaRepository(db *DB, logger *logger.Logger) MetaRepository {
	return &metaRepository{
		DB:     db,
		logger: logger,
	}
}

// Get returns the singleton metadata row, or [ErrMetaNotFound] when the
// device has never signed in.
func (m *metaRepository) Get(ctx context.Context) (models.SyncMeta, error) {
	log := logger.FromContext(ctx)

	var meta models.SyncMeta

	err := m.DB.QueryRowContext(ctx, getSyncMeta).Scan(
		&meta.UserID,
		&meta.Username,
		&meta.Email,
		&meta.SessionToken,
		&meta.SyncEnabled,
		&meta.LastSyncVersion,
		&meta.LastSyncAt,
		&meta.LastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncMeta{}, ErrMetaNotFound
		}
		log.Err(err).
			Str("func", "metaRepository.Get").
			Msg("failed to query sync metadata")
		return models.SyncMeta{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return meta, nil
}

// Save upserts the singleton metadata row.
func (m *metaRepository) Save(ctx context.Context, meta models.SyncMeta) error {
	log := logger.FromContext(ctx)

	if _, err := m.DB.ExecContext(ctx, saveSyncMeta,
		meta.UserID,
		meta.Username,
		meta.Email,
		meta.SessionToken,
		meta.SyncEnabled,
		meta.LastSyncVersion,
		meta.LastSyncAt,
		meta.LastError,
	); err != nil {
		log.Err(err).
			Str("func", "metaRepository.Save").
			Int64("user_id", meta.UserID).
			Msg("failed to save sync metadata")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Clear removes the metadata row. Clearing an already empty table succeeds.
func (m *metaRepository) Clear(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if _, err := m.DB.ExecContext(ctx, clearSyncMeta); err != nil {
		log.Err(err).
			Str("func", "metaRepository.Clear").
			Msg("failed to clear sync metadata")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
