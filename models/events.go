package models

// EventType identifies a sync lifecycle event.
type EventType string

const (
	// EventSyncStarted fires when a cycle leaves the idle state.
	EventSyncStarted EventType = "sync:started"

	// EventSyncProgress fires on stage transitions and per-image transfers.
	EventSyncProgress EventType = "sync:progress"

	// EventSyncCompleted fires after a successful cycle, carrying the result.
	EventSyncCompleted EventType = "sync:completed"

	// EventSyncError fires when a cycle aborts; LastError is updated first.
	EventSyncError EventType = "sync:error"

	// EventAuthRequired fires when the session is expired or invalid.
	// Sync stays disabled until re-authentication.
	EventAuthRequired EventType = "auth:required"
)

// SyncEvent is delivered synchronously to every subscriber of the
// orchestrator's event bus. There is no buffering and no replay: a subscriber
// that attaches after an event fired does not receive it retroactively.
type SyncEvent struct {
	Type EventType `json:"type"`

	// Stage names the protocol stage for progress events
	// (pulling, applying, pushing, image-sync).
	Stage string `json:"stage,omitempty"`

	// Message is a human-readable detail, set on progress and error events.
	Message string `json:"message,omitempty"`

	// Result is populated on sync:completed events.
	Result *SyncResult `json:"result,omitempty"`
}
