package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// imageRepository is the PostgreSQL-backed implementation of
// [ImageRepository]. The images table is global (content-addressed, shared
// across accounts); image_refs tracks which record references which hash.
type imageRepository struct {
	*DB
	logger *logger.Logger
}

// NewImageRepository constructs an [ImageRepository] backed by the provided
// database connection and logger.
func NewImageRepository(db *DB, logger *logger.Logger) ImageRepository {
	return &imageRepository{
		DB:     db,
		logger: logger,
	}
}

// SaveImage records an image descriptor. A duplicate hash, whether via the
// ON CONFLICT clause or a concurrent insert racing past it, is a no-op.
func (i *imageRepository) SaveImage(ctx context.Context, ref models.ImageRef) error {
	log := logger.FromContext(ctx)

	if _, err := i.DB.ExecContext(ctx, saveImage, ref.Hash, ref.ContentType, ref.Size); err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		log.Err(err).
			Str("func", "imageRepository.SaveImage").
			Str("hash", ref.Hash).
			Msg("failed to save image metadata")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// GetImage returns the descriptor for a hash, or [ErrImageNotFound].
func (i *imageRepository) GetImage(ctx context.Context, hash string) (models.ImageRef, error) {
	log := logger.FromContext(ctx)

	var ref models.ImageRef
	err := i.DB.QueryRowContext(ctx, getImage, hash).Scan(&ref.Hash, &ref.ContentType, &ref.Size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ImageRef{}, ErrImageNotFound
		}
		log.Err(err).
			Str("func", "imageRepository.GetImage").
			Str("hash", hash).
			Msg("failed to query image metadata")
		return models.ImageRef{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return ref, nil
}

// ImageExists reports whether a hash is already stored.
func (i *imageRepository) ImageExists(ctx context.Context, hash string) (bool, error) {
	log := logger.FromContext(ctx)

	var exists bool
	if err := i.DB.QueryRowContext(ctx, imageExists, hash).Scan(&exists); err != nil {
		log.Err(err).
			Str("func", "imageRepository.ImageExists").
			Str("hash", hash).
			Msg("failed to check image existence")
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return exists, nil
}

// ReplaceRefs rewrites the reference set of one record inside a transaction:
// old refs are dropped and the given hashes inserted. An empty hash list
// simply clears the record's references.
func (i *imageRepository) ReplaceRefs(ctx context.Context, userID int64, table string, recordID string, hashes []string) error {
	log := logger.FromContext(ctx)

	tx, err := i.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "imageRepository.ReplaceRefs").
			Int64("user_id", userID).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, deleteImageRefs, userID, table, recordID); err != nil {
		log.Err(err).
			Str("func", "imageRepository.ReplaceRefs").
			Str("table", table).
			Str("record_id", recordID).
			Msg("failed to clear image refs")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	for _, hash := range hashes {
		if _, err = tx.ExecContext(ctx, insertImageRef, userID, table, recordID, hash); err != nil {
			log.Err(err).
				Str("func", "imageRepository.ReplaceRefs").
				Str("table", table).
				Str("record_id", recordID).
				Str("hash", hash).
				Msg("failed to insert image ref")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).
			Str("func", "imageRepository.ReplaceRefs").
			Str("table", table).
			Str("record_id", recordID).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}

	return nil
}

// Orphans returns hashes of unreferenced images created before olderThan.
// The age guard keeps the janitor from collecting an image whose referencing
// record is still being pushed.
func (i *imageRepository) Orphans(ctx context.Context, olderThan time.Time) ([]string, error) {
	log := logger.FromContext(ctx)

	rows, queryErr := i.DB.QueryContext(ctx, orphanImages, olderThan)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "imageRepository.Orphans").
			Msg("failed to execute orphan query")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	hashes := make([]string, 0, 10)

	for rows.Next() {
		var hash string
		if scanErr := rows.Scan(&hash); scanErr != nil {
			log.Err(scanErr).
				Str("func", "imageRepository.Orphans").
				Msg("failed to scan orphan row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		hashes = append(hashes, hash)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "imageRepository.Orphans").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return hashes, nil
}

// DeleteImage removes the metadata row for a hash.
func (i *imageRepository) DeleteImage(ctx context.Context, hash string) error {
	log := logger.FromContext(ctx)

	if _, err := i.DB.ExecContext(ctx, deleteImage, hash); err != nil {
		log.Err(err).
			Str("func", "imageRepository.DeleteImage").
			Str("hash", hash).
			Msg("failed to delete image metadata")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
