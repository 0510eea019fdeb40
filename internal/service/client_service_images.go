// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

// imageTransferConcurrency bounds parallel uploads and downloads during
// SyncAll so an image-heavy first sync does not saturate the network.
const imageTransferConcurrency = 4

type clientImageService struct {
	cache         store.ImageCacheRepository
	serverAdapter adapter.ServerAdapter
	logger        *logger.Logger
}

// NewClientImageService constructs a [ClientImageService].
func NewClientImageService(cache store.ImageCacheRepository, serverAdapter adapter.ServerAdapter, logger *logger.Logger) ClientImageService {
	return &clientImageService{
		cache:         cache,
		serverAdapter: serverAdapter,
		logger:        logger,
	}
}

// Hash computes the content digest of raw bytes.
func (c *clientImageService) Hash(data []byte) string {
	return utils.ContentDigest(data)
}

// Store validates and caches a new image locally.
func (c *clientImageService) Store(ctx context.Context, body []byte, contentType string) (models.ImageRef, error) {
	if int64(len(body)) > models.MaxImageSize {
		return models.ImageRef{}, ErrImageTooLarge
	}
	if !models.ValidImageType(contentType) {
		return models.ImageRef{}, ErrUnsupportedImageType
	}

	ref := models.ImageRef{
		Hash:        c.Hash(body),
		ContentType: contentType,
		Size:        int64(len(body)),
	}

	if err := c.cache.Put(ctx, ref, body); err != nil {
		return models.ImageRef{}, fmt.Errorf("cache image: %w", err)
	}

	return ref, nil
}

// Exists checks local presence.
func (c *clientImageService) Exists(ctx context.Context, hash string) (bool, error) {
	return c.cache.Exists(ctx, hash)
}

// Upload pushes one cached image. Validation runs before any network call;
// the presign answer decides whether bytes move at all.
func (c *clientImageService) Upload(ctx context.Context, ref models.ImageRef) (bool, error) {
	log := logger.FromContext(ctx)

	body, cached, err := c.cache.Get(ctx, ref.Hash)
	if err != nil {
		return false, fmt.Errorf("read cached image: %w", err)
	}

	if !utils.ValidDigest(cached.Hash) {
		return false, ErrInvalidDigest
	}
	if cached.Size > models.MaxImageSize {
		return false, ErrImageTooLarge
	}
	if !models.ValidImageType(cached.ContentType) {
		return false, ErrUnsupportedImageType
	}

	presign, err := c.serverAdapter.PresignUpload(ctx, models.PresignUploadRequest{
		Hash:        cached.Hash,
		ContentType: cached.ContentType,
		Size:        cached.Size,
	})
	if err != nil {
		return false, fmt.Errorf("presign upload: %w", err)
	}
	if presign.AlreadyExists {
		log.Debug().
			Str("func", "clientImageService.Upload").
			Str("hash", cached.Hash).
			Msg("server already stores image, skipping transfer")
		return false, nil
	}

	if _, err = c.serverAdapter.UploadImage(ctx, cached.Hash, cached.ContentType, body); err != nil {
		return false, fmt.Errorf("upload image: %w", err)
	}

	return true, nil
}

// Download fetches one image and caches it. The digest of the received
// bytes is verified before the cache accepts them.
func (c *clientImageService) Download(ctx context.Context, hash string) ([]byte, models.ImageRef, error) {
	body, contentType, err := c.serverAdapter.DownloadImage(ctx, hash)
	if err != nil {
		return nil, models.ImageRef{}, err
	}

	if computed := c.Hash(body); computed != hash {
		return nil, models.ImageRef{}, ErrHashMismatch
	}

	ref := models.ImageRef{Hash: hash, ContentType: contentType, Size: int64(len(body))}
	if err = c.cache.Put(ctx, ref, body); err != nil {
		return nil, models.ImageRef{}, fmt.Errorf("cache downloaded image: %w", err)
	}

	return body, ref, nil
}

// imageTask is one planned transfer inside SyncAll.
type imageTask struct {
	ref    models.ImageRef
	upload bool
}

// rejectedImage reports whether the error concerns one image's content
// rather than the transfer machinery. Rejected images are counted and the
// pass moves on: retrying them cannot succeed until the content changes.
func rejectedImage(err error) bool {
	return errors.Is(err, ErrInvalidDigest) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrUnsupportedImageType) ||
		errors.Is(err, ErrHashMismatch)
}

// SyncAll partitions the referenced images and transfers the missing ones
// with bounded concurrency. Refs that are neither cached locally nor stored
// remotely are skipped: no device ever uploaded them, so there is nothing
// to move yet. A rejected image fails alone; a transport error aborts the
// pass, since every remaining transfer would hit the same wall.
func (c *clientImageService) SyncAll(ctx context.Context, refs []models.ImageRef, progress func(done int, total int)) (ImageSyncStats, error) {
	log := logger.FromContext(ctx)

	var stats ImageSyncStats
	tasks := make([]imageTask, 0, len(refs))

	for _, ref := range refs {
		local, err := c.cache.Exists(ctx, ref.Hash)
		if err != nil {
			return stats, fmt.Errorf("check cache: %w", err)
		}
		remote, err := c.serverAdapter.CheckImage(ctx, ref.Hash)
		if err != nil {
			return stats, fmt.Errorf("check remote image: %w", err)
		}

		switch {
		case local && !remote:
			tasks = append(tasks, imageTask{ref: ref, upload: true})
		case !local && remote:
			tasks = append(tasks, imageTask{ref: ref, upload: false})
		default:
			stats.Skipped++
		}
	}

	if len(tasks) == 0 {
		if progress != nil {
			progress(0, 0)
		}
		return stats, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		done     int
	)
	sem := make(chan struct{}, imageTransferConcurrency)

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(task imageTask) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted {
				return
			}

			var (
				uploaded bool
				err      error
			)
			if task.upload {
				uploaded, err = c.Upload(ctx, task.ref)
			} else {
				_, _, err = c.Download(ctx, task.ref.Hash)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if !rejectedImage(err) {
					if firstErr == nil {
						firstErr = err
					}
					return
				}

				log.Warn().Err(err).
					Str("func", "clientImageService.SyncAll").
					Str("hash", task.ref.Hash).
					Msg("image rejected, continuing with the rest")
				stats.Failed++

				done++
				if progress != nil {
					progress(done, len(tasks))
				}
				return
			}

			switch {
			case task.upload && uploaded:
				stats.Uploaded++
			case task.upload:
				// server already had the bytes
				stats.Skipped++
			default:
				stats.Downloaded++
			}

			done++
			if progress != nil {
				progress(done, len(tasks))
			}
		}(task)
	}

	wg.Wait()

	if firstErr != nil {
		if !errors.Is(firstErr, context.Canceled) {
			log.Err(firstErr).
				Str("func", "clientImageService.SyncAll").
				Int("total", len(tasks)).
				Msg("image sync pass aborted")
		}
		return stats, firstErr
	}

	return stats, nil
}
