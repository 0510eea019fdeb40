// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

type syncOrchestrator struct {
	syncSvc ClientSyncService
	auth    ClientAuthService
	tracker ChangeTracker
	meta    store.MetaRepository

	interval time.Duration
	debounce time.Duration
	enabled  atomic.Bool
	syncing  atomic.Bool
	pending  atomic.Bool

	subMu       sync.RWMutex
	subscribers map[int64]func(models.SyncEvent)
	nextSubID   int64

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logger.Logger
}

// NewSyncOrchestrator constructs a [SyncOrchestrator]. interval drives the
// auto-sync timer, debounce the change-triggered coalescing window.
func NewSyncOrchestrator(
	syncSvc ClientSyncService,
	auth ClientAuthService,
	tracker ChangeTracker,
	meta store.MetaRepository,
	interval time.Duration,
	debounce time.Duration,
	logger *logger.Logger,
) SyncOrchestrator {
	o := &syncOrchestrator{
		syncSvc:     syncSvc,
		auth:        auth,
		tracker:     tracker,
		meta:        meta,
		interval:    interval,
		debounce:    debounce,
		subscribers: make(map[int64]func(models.SyncEvent)),
		logger:      logger,
	}
	o.enabled.Store(true)

	return o
}

// Subscribe attaches a handler. Delivery is synchronous and unbuffered;
// handlers must return quickly and must not call back into the orchestrator
// while handling an event.
func (o *syncOrchestrator) Subscribe(handler func(models.SyncEvent)) func() {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = handler

	return func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		delete(o.subscribers, id)
	}
}

func (o *syncOrchestrator) publish(event models.SyncEvent) {
	o.subMu.RLock()
	defer o.subMu.RUnlock()

	for _, handler := range o.subscribers {
		handler(event)
	}
}

// Sync runs one cycle immediately and publishes lifecycle events around it.
// A trigger that lands while a cycle is in flight publishes nothing and
// returns an empty result; it marks the cycle pending, and the in-flight
// call runs once more after finishing so the trigger's changes still move.
func (o *syncOrchestrator) Sync(ctx context.Context) models.SyncResult {
	if !o.syncing.CompareAndSwap(false, true) {
		o.pending.Store(true)
		return models.SyncResult{}
	}
	defer o.syncing.Store(false)

	result := o.runCycle(ctx)
	for o.pending.CompareAndSwap(true, false) {
		if !o.enabled.Load() {
			break
		}
		result = o.runCycle(ctx)
	}

	return result
}

// runCycle executes one cycle and publishes its lifecycle events.
func (o *syncOrchestrator) runCycle(ctx context.Context) models.SyncResult {
	log := logger.FromContext(ctx)

	o.publish(models.SyncEvent{Type: models.EventSyncStarted})

	result, err := o.syncSvc.FullSync(ctx)
	if err != nil {
		if errors.Is(err, adapter.ErrUnauthorized) {
			if clearErr := o.auth.ClearLocalSession(ctx); clearErr != nil {
				log.Err(clearErr).
					Str("func", "syncOrchestrator.runCycle").
					Msg("failed to clear rejected session")
			}
			o.enabled.Store(false)
			o.tracker.SetEnabled(false)
			o.publish(models.SyncEvent{Type: models.EventAuthRequired, Message: "session expired, sign in again"})
		}

		o.publish(models.SyncEvent{Type: models.EventSyncError, Message: err.Error()})
		return result
	}

	o.publish(models.SyncEvent{Type: models.EventSyncCompleted, Result: &result})
	return result
}

// ScheduleSync arms (or re-arms) the debounce timer. Bursts of local edits
// collapse into a single cycle that starts one debounce window after the
// last edit.
func (o *syncOrchestrator) ScheduleSync() {
	if !o.enabled.Load() {
		return
	}

	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()

	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
	}
	o.debounceTimer = time.AfterFunc(o.debounce, func() {
		if !o.enabled.Load() {
			return
		}
		o.Sync(o.logger.WithContext(context.Background()))
	})
}

// SetSyncEnabled flips the engine flag, persists it and aligns change
// capture. Disabling never cancels a cycle already in flight.
func (o *syncOrchestrator) SetSyncEnabled(ctx context.Context, enabled bool) error {
	o.enabled.Store(enabled)
	o.tracker.SetEnabled(enabled)

	meta, err := o.meta.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrMetaNotFound) {
			// not signed in yet, the flag is picked up at next sign-in
			return nil
		}
		return err
	}

	meta.SyncEnabled = enabled
	return o.meta.Save(ctx, meta)
}

func (o *syncOrchestrator) SyncEnabled() bool {
	return o.enabled.Load()
}

// Start restores the persisted engine flag and launches the auto-sync
// timer. Calling Start twice without Stop is an error in wiring and is
// ignored.
func (o *syncOrchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.cancel != nil {
		return nil
	}

	if meta, err := o.meta.Get(ctx); err == nil {
		o.enabled.Store(meta.SyncEnabled)
		o.tracker.SetEnabled(meta.SyncEnabled)
	}

	runCtx, cancel := context.WithCancel(o.logger.WithContext(context.Background()))
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if o.enabled.Load() {
					o.Sync(runCtx)
				}
			}
		}
	}()

	return nil
}

// Stop halts the auto-sync timer and the debounce timer and waits for the
// ticker goroutine to exit.
func (o *syncOrchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.cancel == nil {
		return
	}

	o.cancel()
	o.cancel = nil
	o.wg.Wait()

	o.debounceMu.Lock()
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
		o.debounceTimer = nil
	}
	o.debounceMu.Unlock()
}
