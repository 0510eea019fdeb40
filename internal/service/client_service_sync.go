// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

// Sync cycle stage names, reported through progress events.
const (
	StagePulling   = "pulling"
	StageApplying  = "applying"
	StagePushing   = "pushing"
	StageImageSync = "image-sync"
)

type clientSyncService struct {
	records       store.LocalRecordRepository
	outbox        store.OutboxRepository
	meta          store.MetaRepository
	tracker       ChangeTracker
	images        ClientImageService
	serverAdapter adapter.ServerAdapter
	onEvent       func(models.SyncEvent)
	running       atomic.Bool
	logger        *logger.Logger
}

// NewClientSyncService constructs a [ClientSyncService]. onEvent receives
// stage progress events and may be nil.
func NewClientSyncService(
	storages *store.ClientStorages,
	tracker ChangeTracker,
	images ClientImageService,
	serverAdapter adapter.ServerAdapter,
	onEvent func(models.SyncEvent),
	logger *logger.Logger,
) ClientSyncService {
	return &clientSyncService{
		records:       storages.Records,
		outbox:        storages.Outbox,
		meta:          storages.Meta,
		tracker:       tracker,
		images:        images,
		serverAdapter: serverAdapter,
		onEvent:       onEvent,
		logger:        logger,
	}
}

func (c *clientSyncService) InProgress() bool {
	return c.running.Load()
}

func (c *clientSyncService) progress(stage string, message string) {
	if c.onEvent != nil {
		c.onEvent(models.SyncEvent{Type: models.EventSyncProgress, Stage: stage, Message: message})
	}
}

// FullSync runs one pull, apply, push, image-sync cycle.
//
// The cycle is crash-safe by construction: the version cursor only advances
// after remote changes are durably applied, outbox entries are only deleted
// after the server acknowledged them, and re-applying a pull is idempotent.
// An interrupted cycle therefore repeats work on the next run instead of
// losing it.
//
// Per-item failures stay per-item: a record that fails to apply or an image
// that is rejected is reported through the metadata row and the result
// counters, while the rest of the cycle runs to completion.
func (c *clientSyncService) FullSync(ctx context.Context) (models.SyncResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer c.running.Store(false)

	log := logger.FromContext(ctx)
	start := time.Now()

	meta, err := c.meta.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrMetaNotFound) {
			return c.failed(ctx, nil, start, ErrNotSignedIn)
		}
		return c.failed(ctx, nil, start, fmt.Errorf("load sync metadata: %w", err))
	}
	c.serverAdapter.SetToken(meta.SessionToken)

	var result models.SyncResult

	// pull
	c.progress(StagePulling, "fetching remote changes")
	pull, err := c.serverAdapter.Pull(ctx, models.PullRequest{SinceVersion: meta.LastSyncVersion})
	if err != nil {
		return c.failed(ctx, &meta, start, fmt.Errorf("pull: %w", err))
	}

	// apply
	c.progress(StageApplying, "applying remote changes")
	applied, failedApply := c.applyPull(ctx, pull)
	result.Pulled = applied

	// the cursor only advances past a fully applied delta; a skipped
	// record keeps it in place so the next pull delivers it again
	if failedApply == 0 {
		meta.LastSyncVersion = pull.Version
		if err = c.meta.Save(ctx, meta); err != nil {
			return c.failed(ctx, &meta, start, fmt.Errorf("advance version cursor: %w", err))
		}
	}

	// push
	c.progress(StagePushing, "pushing local changes")
	pushed, conflicts, err := c.pushOutbox(ctx, &meta, failedApply == 0)
	if err != nil {
		return c.failed(ctx, &meta, start, fmt.Errorf("push: %w", err))
	}
	result.Pushed = pushed
	result.Conflicts = conflicts

	// image sync
	c.progress(StageImageSync, "reconciling images")
	stats, err := c.syncImages(ctx)
	if err != nil {
		return c.failed(ctx, &meta, start, fmt.Errorf("image sync: %w", err))
	}
	result.ImagesUploaded = stats.Uploaded
	result.ImagesDownloaded = stats.Downloaded
	result.ImagesFailed = stats.Failed

	now := time.Now()
	meta.LastSyncAt = &now
	meta.LastError = partialFailureSummary(failedApply, stats.Failed)
	if err = c.meta.Save(ctx, meta); err != nil {
		return c.failed(ctx, &meta, start, fmt.Errorf("record sync outcome: %w", err))
	}

	result.Duration = time.Since(start)
	log.Info().
		Str("func", "clientSyncService.FullSync").
		Int("pulled", result.Pulled).
		Int("pushed", result.Pushed).
		Int("conflicts", result.Conflicts).
		Int("images_up", result.ImagesUploaded).
		Int("images_down", result.ImagesDownloaded).
		Dur("duration", result.Duration).
		Msg("sync cycle completed")

	return result, nil
}

// applyPull writes the remote delta into the local store with change capture
// suspended, so pulled rows never loop back into the outbox. Upserts
// overwrite unconditionally: pull results are authoritative.
//
// A record that fails to apply is logged and skipped, the rest of the delta
// still lands. The caller keeps the version cursor in place when failed is
// non-zero, so the next pull re-delivers the skipped records; re-applying
// the ones that already succeeded is idempotent.
func (c *clientSyncService) applyPull(ctx context.Context, pull models.PullResponse) (applied int, failed int) {
	log := logger.FromContext(ctx)

	prev := c.tracker.Enabled()
	c.tracker.SetEnabled(false)
	defer c.tracker.SetEnabled(prev)

	now := time.Now().UTC()

	for _, table := range models.SyncTables {
		tc, ok := pull.Changes[table]
		if !ok {
			continue
		}

		for _, rec := range tc.Upserts {
			if err := c.records.Put(ctx, table, rec); err != nil {
				log.Warn().Err(err).
					Str("func", "clientSyncService.applyPull").
					Str("table", table).
					Str("record_id", rec.ID).
					Msg("upsert failed, record retried on next pull")
				failed++
				continue
			}
			applied++
		}

		for _, id := range tc.Deletes {
			// deleting a record this device never had is a no-op
			if err := c.records.MarkDeleted(ctx, table, id, now); err != nil {
				log.Warn().Err(err).
					Str("func", "clientSyncService.applyPull").
					Str("table", table).
					Str("record_id", id).
					Msg("delete failed, record retried on next pull")
				failed++
				continue
			}
			applied++
		}
	}

	return applied, failed
}

// pushOutbox flushes the pending outbox. Acknowledged entries are deleted,
// conflicted ones included: a conflict is not retried, the winning remote
// value arrives with the next pull.
//
// advanceCursor is false when the preceding apply skipped records; the
// cursor then stays behind the push version and the next pull re-delivers
// everything since, this device's own pushed changes included.
func (c *clientSyncService) pushOutbox(ctx context.Context, meta *models.SyncMeta, advanceCursor bool) (int, int, error) {
	changes, err := c.outbox.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list outbox: %w", err)
	}
	if len(changes) == 0 {
		return 0, 0, nil
	}

	resp, err := c.serverAdapter.Push(ctx, models.PushRequest{
		LastSyncVersion: meta.LastSyncVersion,
		Changes:         changes,
	})
	if err != nil {
		return 0, 0, err
	}

	seqs := make([]int64, 0, len(changes))
	for _, change := range changes {
		seqs = append(seqs, change.ID)
	}
	if err = c.outbox.Delete(ctx, seqs); err != nil {
		return 0, 0, fmt.Errorf("clear acknowledged outbox entries: %w", err)
	}

	if advanceCursor {
		meta.LastSyncVersion = resp.Version
		if err = c.meta.Save(ctx, *meta); err != nil {
			return 0, 0, fmt.Errorf("advance version cursor: %w", err)
		}
	}

	return len(changes) - len(resp.ConflictIDs), len(resp.ConflictIDs), nil
}

// partialFailureSummary renders the per-item failures of a cycle that still
// completed. Empty when everything applied and transferred.
func partialFailureSummary(failedApply int, failedImages int) string {
	var parts []string
	if failedApply > 0 {
		parts = append(parts, fmt.Sprintf("%d pulled changes failed to apply", failedApply))
	}
	if failedImages > 0 {
		parts = append(parts, fmt.Sprintf("%d images were rejected", failedImages))
	}

	return strings.Join(parts, "; ")
}

// syncImages reconciles every image referenced by live local records.
func (c *clientSyncService) syncImages(ctx context.Context) (ImageSyncStats, error) {
	all := make([]models.Record, 0, 100)
	for _, table := range models.SyncTables {
		records, err := c.records.ListAll(ctx, table)
		if err != nil {
			return ImageSyncStats{}, fmt.Errorf("list %s: %w", table, err)
		}
		all = append(all, records...)
	}

	refs := models.CollectImageRefs(all)
	if len(refs) == 0 {
		return ImageSyncStats{}, nil
	}

	return c.images.SyncAll(ctx, refs, func(done, total int) {
		c.progress(StageImageSync, fmt.Sprintf("transferred %d of %d images", done, total))
	})
}

// failed records the failure in the metadata row (when one exists) and
// returns the error alongside a result that carries it.
func (c *clientSyncService) failed(ctx context.Context, meta *models.SyncMeta, start time.Time, err error) (models.SyncResult, error) {
	log := logger.FromContext(ctx)

	if meta != nil {
		meta.LastError = err.Error()
		if saveErr := c.meta.Save(ctx, *meta); saveErr != nil {
			log.Err(saveErr).
				Str("func", "clientSyncService.failed").
				Msg("failed to record sync error")
		}
	}

	log.Err(err).
		Str("func", "clientSyncService.FullSync").
		Msg("sync cycle failed")

	return models.SyncResult{Duration: time.Since(start), Error: err.Error()}, err
}
