package service

import (
	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

// ClientServices bundles the client-side engine for application wiring.
type ClientServices struct {
	Tracker      ChangeTracker
	Images       ClientImageService
	Sync         ClientSyncService
	Auth         ClientAuthService
	Orchestrator SyncOrchestrator
}

// NewClientServices wires the engine together: the tracker is registered on
// the record repository so every local mutation lands in the outbox within
// the mutation's transaction, and every capture pokes the orchestrator's
// debounce timer.
func NewClientServices(storages *store.ClientStorages, serverAdapter adapter.ServerAdapter, cfg *config.ClientConfig, log *logger.Logger) *ClientServices {
	// The tracker is built before the orchestrator; the closure resolves
	// the orchestrator at capture time.
	var orchestrator SyncOrchestrator
	tracker := NewChangeTracker(storages.Outbox, func() {
		if orchestrator != nil {
			orchestrator.ScheduleSync()
		}
	}, log)
	storages.Records.Register(tracker)

	images := NewClientImageService(storages.Images, serverAdapter, log)
	auth := NewClientAuthService(storages, serverAdapter, log)

	// progress events flow through the orchestrator's bus
	syncSvc := NewClientSyncService(storages, tracker, images, serverAdapter, func(event models.SyncEvent) {
		if o, ok := orchestrator.(*syncOrchestrator); ok {
			o.publish(event)
		}
	}, log)

	orchestrator = NewSyncOrchestrator(syncSvc, auth, tracker, storages.Meta, cfg.Sync.Interval, cfg.Sync.Debounce, log)

	return &ClientServices{
		Tracker:      tracker,
		Images:       images,
		Sync:         syncSvc,
		Auth:         auth,
		Orchestrator: orchestrator,
	}
}
