package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/packsync-app/packsync/models"
)

// Execer is the narrow write surface handed to [ChangeListener] callbacks.
// It is satisfied by both *sql.Tx and *sql.DB, but listeners always receive
// the transaction that carries the triggering mutation, so any rows they
// write commit or roll back together with the record change itself.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ChangeListener observes committed mutations of the local record set.
// Callbacks run inside the same transaction as the mutation; a listener that
// needs durable side effects (such as appending to the outbox) must write
// them through tx. Callbacks return no error on purpose: a listener failure
// must not fail the user's write, so implementations handle and log their
// own errors.
type ChangeListener interface {
	RecordCreated(ctx context.Context, tx Execer, table string, rec models.Record)
	RecordUpdated(ctx context.Context, tx Execer, table string, rec models.Record)
	RecordDeleted(ctx context.Context, tx Execer, table string, rec models.Record)
}

// LocalRecordRepository is the client-side store of synchronized rows.
// All five domain tables share one physical table keyed by (tbl, id);
// documents are kept as opaque JSON.
type LocalRecordRepository interface {
	// Register subscribes a listener to every subsequent mutation.
	// Registration order is preserved during notification.
	Register(listener ChangeListener)

	// Get returns a single record, or [ErrRecordNotFound].
	Get(ctx context.Context, table string, id string) (models.Record, error)

	// ListAll returns every record of the table, soft-deleted rows included,
	// ordered by id for deterministic output.
	ListAll(ctx context.Context, table string) ([]models.Record, error)

	// Put creates or fully replaces a record and notifies listeners with the
	// post-write snapshot. Which callback fires (created vs updated) depends
	// on whether the row existed before the write.
	Put(ctx context.Context, table string, rec models.Record) error

	// MarkDeleted soft-deletes a record, stamping updated_at with at.
	// Deleting a record that does not exist is a silent no-op and fires no
	// listener callbacks.
	MarkDeleted(ctx context.Context, table string, id string, at time.Time) error
}

// OutboxRepository is the durable queue of local changes awaiting push.
// Entries are strictly ordered by an auto-incrementing sequence number and
// are never coalesced: three edits to the same record enqueue three entries.
type OutboxRepository interface {
	// AppendTx enqueues a change using the caller's transaction so the entry
	// commits atomically with the mutation that produced it.
	AppendTx(ctx context.Context, tx Execer, change models.LocalChange) error

	// List returns all pending changes in enqueue order.
	List(ctx context.Context) ([]models.LocalChange, error)

	// Delete removes the entries with the given sequence numbers, typically
	// after a successful push.
	Delete(ctx context.Context, seqs []int64) error

	// Clear drops every pending entry.
	Clear(ctx context.Context) error

	// Count reports the number of pending entries.
	Count(ctx context.Context) (int, error)
}

// MetaRepository persists the singleton sync state of this device: session,
// identity, cursor and the outcome of the last cycle.
type MetaRepository interface {
	// Get returns the metadata row, or [ErrMetaNotFound] when the device has
	// never signed in.
	Get(ctx context.Context) (models.SyncMeta, error)

	// Save upserts the metadata row.
	Save(ctx context.Context, meta models.SyncMeta) error

	// Clear removes the metadata row, returning the device to the
	// signed-out state.
	Clear(ctx context.Context) error
}

// ImageCacheRepository stores downloaded image bodies locally, keyed by
// content digest. Cached entries are immutable: a digest never maps to
// different bytes.
type ImageCacheRepository interface {
	Put(ctx context.Context, ref models.ImageRef, body []byte) error
	Get(ctx context.Context, hash string) ([]byte, models.ImageRef, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Delete(ctx context.Context, hash string) error
}
