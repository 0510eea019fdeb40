package service

import (
	"context"

	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

// ChangeTracker observes local record mutations and turns them into durable
// outbox entries. It embeds [store.ChangeListener] so it can be registered
// directly on the local record repository; the append then shares the
// mutation's transaction.
//
// The enabled flag is engine-scoped and atomic: the sync cycle disables
// tracking while it applies remote changes, so pulled rows never re-enter
// the outbox as local edits.
type ChangeTracker interface {
	store.ChangeListener

	// SetEnabled switches capture on or off.
	SetEnabled(enabled bool)

	// Enabled reports whether mutations are currently captured.
	Enabled() bool
}

// ImageSyncStats summarises one image synchronisation pass.
type ImageSyncStats struct {
	Uploaded   int
	Downloaded int
	Skipped    int

	// Failed counts images whose content was rejected (bad digest,
	// oversized, unsupported type). The pass continues past them.
	Failed int
}

// ClientImageService moves image blobs between the local cache and the
// remote store, addressing them exclusively by content digest.
type ClientImageService interface {
	// Hash computes the content digest of raw bytes. Pure and stable
	// across devices.
	Hash(data []byte) string

	// Store validates a new image and puts it in the local cache, returning
	// its reference. This is the entry point when the user attaches an
	// image; the upload happens on the next sync.
	Store(ctx context.Context, body []byte, contentType string) (models.ImageRef, error)

	// Exists checks local presence without reading the blob.
	Exists(ctx context.Context, hash string) (bool, error)

	// Upload pushes one cached image to the remote store. Returns true when
	// bytes were actually transferred and false when the server already had
	// the digest.
	Upload(ctx context.Context, ref models.ImageRef) (bool, error)

	// Download fetches one image from the remote store and caches it.
	Download(ctx context.Context, hash string) ([]byte, models.ImageRef, error)

	// SyncAll partitions refs into local-only (upload), remote-only
	// (download) and already-synced (skip), then transfers with bounded
	// concurrency. progress, when non-nil, is invoked once per finished
	// item. A rejected image is counted in Failed and the pass continues;
	// the first transport error aborts it.
	SyncAll(ctx context.Context, refs []models.ImageRef, progress func(done int, total int)) (ImageSyncStats, error)
}

// ClientSyncService runs one full synchronisation cycle:
// pull, apply, push, image sync.
type ClientSyncService interface {
	// FullSync executes one cycle and returns its summary. At most one
	// cycle runs at a time; a concurrent call fails fast with
	// [ErrSyncInProgress].
	FullSync(ctx context.Context) (models.SyncResult, error)

	// InProgress reports whether a cycle is currently running.
	InProgress() bool
}

// ClientAuthService manages the device's session against the server.
type ClientAuthService interface {
	// RequestMagicLink starts the passwordless flow for email.
	RequestMagicLink(ctx context.Context, email string) error

	// Verify exchanges a magic-link token for a session and persists it.
	Verify(ctx context.Context, token string) (models.Session, error)

	// Restore loads a persisted session into the transport. Returns false
	// when the device has never signed in.
	Restore(ctx context.Context) (bool, error)

	// Validate checks the stored session against the server. An
	// [adapter.ErrUnauthorized] answer clears the local session.
	Validate(ctx context.Context) error

	// Logout invalidates the session server-side (best effort) and always
	// destroys the local session state, outbox included.
	Logout(ctx context.Context) error

	// ClearLocalSession drops session state without calling the server.
	// Used when the server has already rejected the session.
	ClearLocalSession(ctx context.Context) error
}

// SyncOrchestrator coordinates sync execution and distributes lifecycle
// events. Event delivery is synchronous multicast without buffering: a
// subscriber attached after an event fired does not see it retroactively.
type SyncOrchestrator interface {
	// Sync runs one cycle immediately and publishes started, progress and
	// completed (or error) events around it. A trigger during a running
	// cycle publishes nothing and schedules exactly one follow-up cycle.
	Sync(ctx context.Context) models.SyncResult

	// Subscribe attaches an event handler and returns its detach function.
	Subscribe(handler func(models.SyncEvent)) (unsubscribe func())

	// ScheduleSync requests a cycle after the debounce window, coalescing
	// bursts of local edits into one cycle. The change tracker calls this
	// on every captured mutation.
	ScheduleSync()

	// SetSyncEnabled toggles the engine: change capture, auto-sync and
	// debounced cycles. The flag is persisted across restarts.
	SetSyncEnabled(ctx context.Context, enabled bool) error

	// SyncEnabled reports the persisted engine flag.
	SyncEnabled() bool

	// Start launches the auto-sync timer. Stop halts it and waits for a
	// running cycle to finish.
	Start(ctx context.Context) error
	Stop()
}
