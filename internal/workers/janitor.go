// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
)

// Janitor is the background worker that keeps server storage tidy. On every
// tick it removes image blobs no record references any more and purges
// expired sessions and magic links.
//
// Orphan collection is grace-delayed: a blob only qualifies once it is older
// than the configured grace period, because pushed records may reference an
// image whose upload has not completed yet.
type Janitor struct {
	accounts store.AccountRepository
	images   store.ImageRepository
	blobs    store.BlobStorage

	interval time.Duration
	grace    time.Duration

	stop chan struct{}
	wg   sync.WaitGroup

	logger *logger.Logger
}

func NewJanitor(storages *store.Storages, cfg config.Workers, logger *logger.Logger) *Janitor {
	interval := cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Hour
	}
	grace := cfg.JanitorGrace
	if grace <= 0 {
		grace = 24 * time.Hour
	}

	return &Janitor{
		accounts: storages.Accounts,
		images:   storages.Images,
		blobs:    storages.Blobs,
		interval: interval,
		grace:    grace,
		stop:     make(chan struct{}),
		logger:   logger,
	}
}

// Run launches the sweep loop in its own goroutine.
func (j *Janitor) Run() {
	j.wg.Add(1)

	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.sweep(j.logger.WithContext(context.Background()))
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for a pass in flight to finish.
func (j *Janitor) Stop() {
	close(j.stop)
	j.wg.Wait()
}

// sweep performs one cleanup pass. Failures are logged and the pass moves
// on; anything left behind is picked up by a later tick.
func (j *Janitor) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	now := time.Now()

	if err := j.accounts.PurgeExpired(ctx, now); err != nil {
		log.Err(err).
			Str("func", "Janitor.sweep").
			Msg("failed to purge expired sessions and magic links")
	}

	orphans, err := j.images.Orphans(ctx, now.Add(-j.grace))
	if err != nil {
		log.Err(err).
			Str("func", "Janitor.sweep").
			Msg("failed to list orphaned images")
		return
	}

	removed := 0
	for _, hash := range orphans {
		// blob bytes first: a metadata row without a blob is harmless, a
		// blob without metadata would leak forever
		if err = j.blobs.Remove(hash); err != nil {
			log.Err(err).
				Str("func", "Janitor.sweep").
				Str("hash", hash).
				Msg("failed to remove orphaned blob")
			continue
		}
		if err = j.images.DeleteImage(ctx, hash); err != nil {
			log.Err(err).
				Str("func", "Janitor.sweep").
				Str("hash", hash).
				Msg("failed to delete orphaned image metadata")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().
			Str("func", "Janitor.sweep").
			Int("removed", removed).
			Msg("orphaned images collected")
	}
}
