package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// outboxRepository is the SQLite-backed implementation of [OutboxRepository].
// Entries keep the order assigned by the AUTOINCREMENT sequence and survive
// restarts; they are removed only after the server acknowledges a push.
type outboxRepository struct {
	*DB
	logger *logger.Logger
}

// NewOutboxRepository constructs an [OutboxRepository] backed by the provided
// local database connection and logger.
func NewOutboxRepository(db *DB, logger *logger.Logger) OutboxRepository {
	return &outboxRepository{
		DB:     db,
		logger: logger,
	}
}

// AppendTx enqueues a change on the caller's transaction. The payload is
// stored as JSON; delete entries carry no payload.
func (o *outboxRepository) AppendTx(ctx context.Context, tx Execer, change models.LocalChange) error {
	log := logger.FromContext(ctx)

	var payload any
	if change.Payload != nil {
		raw, err := json.Marshal(change.Payload)
		if err != nil {
			log.Err(err).
				Str("func", "outboxRepository.AppendTx").
				Str("table", change.Table).
				Str("record_id", change.RecordID).
				Msg("failed to encode change payload")
			return fmt.Errorf("encode change payload: %w", err)
		}
		payload = string(raw)
	}

	if _, err := tx.ExecContext(ctx, appendOutboxEntry,
		change.Table, change.RecordID, string(change.Operation), change.Timestamp, payload,
	); err != nil {
		log.Err(err).
			Str("func", "outboxRepository.AppendTx").
			Str("table", change.Table).
			Str("record_id", change.RecordID).
			Msg("failed to append outbox entry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// List returns every pending change in enqueue order.
func (o *outboxRepository) List(ctx context.Context) ([]models.LocalChange, error) {
	log := logger.FromContext(ctx)

	rows, queryErr := o.DB.QueryContext(ctx, listOutboxEntries)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "outboxRepository.List").
			Msg("failed to execute query for listing outbox entries")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	changes := make([]models.LocalChange, 0, 50)

	for rows.Next() {
		var (
			change  models.LocalChange
			op      string
			ts      time.Time
			payload *string
		)

		if scanErr := rows.Scan(&change.ID, &change.Table, &change.RecordID, &op, &ts, &payload); scanErr != nil {
			log.Err(scanErr).
				Str("func", "outboxRepository.List").
				Msg("failed to scan outbox row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		change.Operation = models.Operation(op)
		change.Timestamp = ts

		if payload != nil && *payload != "" {
			var rec models.Record
			if decodeErr := json.Unmarshal([]byte(*payload), &rec); decodeErr != nil {
				log.Err(decodeErr).
					Str("func", "outboxRepository.List").
					Int64("seq", change.ID).
					Msg("failed to decode change payload")
				return nil, fmt.Errorf("decode change payload: %w", decodeErr)
			}
			change.Payload = &rec
		}

		changes = append(changes, change)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "outboxRepository.List").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return changes, nil
}

// Delete removes the entries with the given sequence numbers. An empty slice
// is a no-op.
func (o *outboxRepository) Delete(ctx context.Context, seqs []int64) error {
	log := logger.FromContext(ctx)

	if len(seqs) == 0 {
		return nil
	}

	placeholders := make([]string, len(seqs))
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		placeholders[i] = "?"
		args[i] = seq
	}

	query := fmt.Sprintf(`DELETE FROM outbox WHERE seq IN (%s);`, strings.Join(placeholders, ", "))

	if _, err := o.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "outboxRepository.Delete").
			Int("count", len(seqs)).
			Msg("failed to delete acknowledged outbox entries")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Clear drops every pending entry.
func (o *outboxRepository) Clear(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if _, err := o.DB.ExecContext(ctx, clearOutboxEntries); err != nil {
		log.Err(err).
			Str("func", "outboxRepository.Clear").
			Msg("failed to clear outbox")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Count reports the number of pending entries.
func (o *outboxRepository) Count(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	var count int
	if err := o.DB.QueryRowContext(ctx, countOutboxEntries).Scan(&count); err != nil {
		log.Err(err).
			Str("func", "outboxRepository.Count").
			Msg("failed to count outbox entries")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}
