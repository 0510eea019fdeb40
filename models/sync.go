package models

// PullRequest asks the remote store for everything that happened after the
// client's version cursor.
type PullRequest struct {
	// SinceVersion is the last remote version this device has fully
	// incorporated. The server returns changes with a newer version only.
	SinceVersion int64 `json:"sinceVersion"`
}

// TableChanges is the per-table delta inside a pull response.
type TableChanges struct {
	// Upserts are the full current rows of records touched after the
	// requested version. Pull results are authoritative: the client
	// overwrites its local state unconditionally.
	Upserts []Record `json:"upserts"`

	// Deletes are the ids of records soft-deleted after the requested
	// version. A delete for a record the client never had is a no-op.
	Deletes []string `json:"deletes"`
}

// PullResponse carries the remote delta since the requested version.
type PullResponse struct {
	Success bool `json:"success"`

	// Version is the account's current version; the client advances its
	// cursor to this value only after every change has been durably applied.
	Version int64 `json:"version"`

	// Changes maps table name to its delta.
	Changes map[string]TableChanges `json:"changes,omitempty"`

	Error string `json:"error,omitempty"`
}

// PushRequest flushes the local outbox to the remote store. Changes carry
// their original append order; the server applies them change-by-change so
// per-record operation ordering is preserved.
type PushRequest struct {
	// LastSyncVersion is the client's version cursor at push time, recorded
	// for diagnostics. The protocol does not reject stale pushes; the
	// client always pulls immediately before pushing in the same cycle.
	LastSyncVersion int64 `json:"lastSyncVersion"`

	// Changes is the full ordered outbox content.
	Changes []LocalChange `json:"changes"`
}

// PushResponse reports the outcome of a push.
type PushResponse struct {
	Success bool `json:"success"`

	// Version is the new account version after the push was accepted.
	// It increases by exactly one per accepted non-empty push.
	Version int64 `json:"version"`

	// ConflictIDs lists record ids where the remote copy had a newer
	// updatedAt and won. Conflicts are not errors: the client does not
	// retry them and observes the winning value on the next pull.
	ConflictIDs []string `json:"conflictIds,omitempty"`

	Error string `json:"error,omitempty"`
}
