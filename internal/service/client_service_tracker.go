// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sync/atomic"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

// changeTracker is the [ChangeTracker] implementation. It appends one outbox
// entry per captured mutation, never coalescing consecutive edits of the
// same record, and then pokes the orchestrator's debounce timer.
type changeTracker struct {
	outbox   store.OutboxRepository
	onChange func()
	enabled  atomic.Bool
	logger   *logger.Logger
}

// NewChangeTracker constructs a [ChangeTracker]. onChange is invoked after
// every captured mutation (may be nil); capture starts enabled.
func NewChangeTracker(outbox store.OutboxRepository, onChange func(), logger *logger.Logger) ChangeTracker {
	t := &changeTracker{
		outbox:   outbox,
		onChange: onChange,
		logger:   logger,
	}
	t.enabled.Store(true)

	return t
}

func (t *changeTracker) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *changeTracker) Enabled() bool {
	return t.enabled.Load()
}

func (t *changeTracker) RecordCreated(ctx context.Context, tx store.Execer, table string, rec models.Record) {
	t.capture(ctx, tx, table, models.OpCreate, rec)
}

func (t *changeTracker) RecordUpdated(ctx context.Context, tx store.Execer, table string, rec models.Record) {
	t.capture(ctx, tx, table, models.OpUpdate, rec)
}

func (t *changeTracker) RecordDeleted(ctx context.Context, tx store.Execer, table string, rec models.Record) {
	t.capture(ctx, tx, table, models.OpDelete, rec)
}

// capture appends the change through the mutation's own transaction. The
// snapshot is the full post-mutation record, never a diff; delete entries
// carry no payload. A failed append is logged and swallowed so the user's
// write still commits.
func (t *changeTracker) capture(ctx context.Context, tx store.Execer, table string, op models.Operation, rec models.Record) {
	if !t.Enabled() {
		return
	}

	log := logger.FromContext(ctx)

	change := models.LocalChange{
		Table:     table,
		RecordID:  rec.ID,
		Operation: op,
		Timestamp: rec.UpdatedAt,
	}
	if op != models.OpDelete {
		snapshot := rec
		change.Payload = &snapshot
	}

	if err := t.outbox.AppendTx(ctx, tx, change); err != nil {
		log.Err(err).
			Str("func", "changeTracker.capture").
			Str("table", table).
			Str("record_id", rec.ID).
			Str("op", string(op)).
			Msg("failed to capture change")
		return
	}

	// The debounce poke fires before the transaction commits. A rollback
	// then causes at most one spare sync cycle, which is harmless.
	if t.onChange != nil {
		t.onChange()
	}
}
