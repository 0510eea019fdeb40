package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// imageCacheRepository is the SQLite-backed implementation of
// [ImageCacheRepository]. Bodies are stored inline as BLOBs, which is
// acceptable at the enforced 10 MiB per-image ceiling.
type imageCacheRepository struct {
	*DB
	logger *logger.Logger
}

// NewImageCacheRepository constructs an [ImageCacheRepository] backed by the
// provided local database connection and logger.
func NewImageCacheRepository(db *DB, logger *logger.Logger) ImageCacheRepository {
	return &imageCacheRepository{
		DB:     db,
		logger: logger,
	}
}

// Put stores an image body under its content digest. Because a digest never
// maps to different bytes, inserting an already cached hash is a no-op.
func (i *imageCacheRepository) Put(ctx context.Context, ref models.ImageRef, body []byte) error {
	log := logger.FromContext(ctx)

	if _, err := i.DB.ExecContext(ctx, putCachedImage, ref.Hash, ref.ContentType, ref.Size, body); err != nil {
		log.Err(err).
			Str("func", "imageCacheRepository.Put").
			Str("hash", ref.Hash).
			Msg("failed to cache image")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Get returns the cached body and descriptor for a hash, or [ErrImageNotFound].
func (i *imageCacheRepository) Get(ctx context.Context, hash string) ([]byte, models.ImageRef, error) {
	log := logger.FromContext(ctx)

	ref := models.ImageRef{Hash: hash}
	var body []byte

	err := i.DB.QueryRowContext(ctx, getCachedImage, hash).Scan(&ref.ContentType, &ref.Size, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ImageRef{}, ErrImageNotFound
		}
		log.Err(err).
			Str("func", "imageCacheRepository.Get").
			Str("hash", hash).
			Msg("failed to query cached image")
		return nil, models.ImageRef{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return body, ref, nil
}

// Exists reports whether a hash is present in the cache.
func (i *imageCacheRepository) Exists(ctx context.Context, hash string) (bool, error) {
	log := logger.FromContext(ctx)

	var exists bool
	if err := i.DB.QueryRowContext(ctx, cachedImageExists, hash).Scan(&exists); err != nil {
		log.Err(err).
			Str("func", "imageCacheRepository.Exists").
			Str("hash", hash).
			Msg("failed to check cached image existence")
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return exists, nil
}

// Delete evicts a cached image. Deleting a missing hash succeeds.
func (i *imageCacheRepository) Delete(ctx context.Context, hash string) error {
	log := logger.FromContext(ctx)

	if _, err := i.DB.ExecContext(ctx, deleteCachedImage, hash); err != nil {
		log.Err(err).
			Str("func", "imageCacheRepository.Delete").
			Str("hash", hash).
			Msg("failed to delete cached image")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
