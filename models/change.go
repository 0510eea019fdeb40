package models

import "time"

// Operation is the kind of local mutation captured in the outbox.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// LocalChange is a single outbox entry: one durable, ordered change record
// appended by the change tracker for every create/update/delete against the
// local store. Entries are append-only and are consumed (deleted) only by a
// successful push.
//
// Multiple entries may exist for the same RecordID; they are NOT coalesced
// before transmission. The push request carries the full ordered sequence and
// the remote store applies it change-by-change, so per-record operation
// ordering is preserved on the wire.
type LocalChange struct {
	// ID is the outbox sequence number assigned at append time.
	// It defines the transmission order of the push request.
	ID int64 `json:"id"`

	// Table is the synchronized table the change belongs to.
	Table string `json:"table"`

	// RecordID identifies the mutated record within Table.
	RecordID string `json:"recordId"`

	// Operation is the kind of mutation (create, update, delete).
	Operation Operation `json:"operation"`

	// Timestamp is the moment the change was captured on this device.
	Timestamp time.Time `json:"timestamp"`

	// Payload is the full record state after the mutation, never a diff,
	// because the remote apply step performs whole-record upserts. Nil only for
	// delete operations, where the record id suffices.
	Payload *Record `json:"payload,omitempty"`
}
