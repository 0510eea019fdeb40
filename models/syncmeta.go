package models

import "time"

// SyncMeta is the per-device singleton that carries everything the engine
// needs between sync cycles: the authenticated identity, the session token,
// and the version cursor. It is created on first authentication and destroyed
// on sign-out together with all outbox entries (signing out does not attempt
// a final flush).
//
// Only the engine mutates this record; the UI observes it through events.
type SyncMeta struct {
	// UserID is the remote account identifier.
	UserID int64 `json:"userId"`

	// Username is the display name chosen for this account.
	Username string `json:"username"`

	// Email is the address the account was registered with.
	Email string `json:"email"`

	// SessionToken is the bearer token attached to every authenticated
	// request. Cleared when the server reports the session invalid.
	SessionToken string `json:"sessionToken"`

	// SyncEnabled gates scheduling of future sync cycles. A cycle already
	// in flight is never cancelled by flipping this off.
	SyncEnabled bool `json:"syncEnabled"`

	// LastSyncVersion is the version cursor: the last remote version this
	// device has fully incorporated. Pulls request everything after it.
	LastSyncVersion int64 `json:"lastSyncVersion"`

	// LastSyncAt is the completion time of the last successful cycle.
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`

	// LastError is the human-readable description of the last failure,
	// empty after a successful cycle.
	LastError string `json:"lastError,omitempty"`
}
