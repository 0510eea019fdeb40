// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// localRecordRepository is the SQLite-backed implementation of
// [LocalRecordRepository]. Every mutation runs inside a transaction and
// notifies registered listeners before the commit, so listener side effects
// (the outbox append) are atomic with the mutation itself.
type localRecordRepository struct {
	*DB
	logger *logger.Logger

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewLocalRecordRepository constructs a [LocalRecordRepository] backed by
// the provided local database connection and logger.
func NewLocalRecordRepository(db *DB, logger *logger.Logger) LocalRecordRepository {
	return &localRecordRepository{
		DB:     db,
		logger: logger,
	}
}

// Register subscribes a listener to subsequent mutations. Not safe to call
// concurrently with itself, which is fine: registration happens once during
// engine wiring.
func (l *localRecordRepository) Register(listener ChangeListener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listeners = append(l.listeners, listener)
}

// Get retrieves a single record by table and id.
//
// Returns [ErrUnknownTable] for a table outside the synchronized set and
// [ErrRecordNotFound] when the row does not exist.
func (l *localRecordRepository) Get(ctx context.Context, table string, id string) (models.Record, error) {
	log := logger.FromContext(ctx)

	if !models.KnownTable(table) {
		return models.Record{}, ErrUnknownTable
	}

	rec, err := scanRecord(l.DB.QueryRowContext(ctx, getRecord, table, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, ErrRecordNotFound
		}
		log.Err(err).
			Str("func", "localRecordRepository.Get").
			Str("table", table).
			Str("id", id).
			Msg("failed to query record")
		return models.Record{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return rec, nil
}

// ListAll retrieves every record of a table, soft-deleted rows included.
func (l *localRecordRepository) ListAll(ctx context.Context, table string) ([]models.Record, error) {
	log := logger.FromContext(ctx)

	if !models.KnownTable(table) {
		return nil, ErrUnknownTable
	}

	rows, queryErr := l.DB.QueryContext(ctx, getAllRecords, table)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "localRecordRepository.ListAll").
			Str("table", table).
			Msg("failed to execute query for listing records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	records := make([]models.Record, 0, 50)

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "localRecordRepository.ListAll").
				Str("table", table).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "localRecordRepository.ListAll").
			Str("table", table).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return records, nil
}

// Put creates or replaces a record and notifies listeners inside the write
// transaction. The created/updated distinction is decided by an existence
// check on the same transaction, so concurrent writers cannot misclassify
// the operation.
func (l *localRecordRepository) Put(ctx context.Context, table string, rec models.Record) error {
	log := logger.FromContext(ctx)

	if !models.KnownTable(table) {
		return ErrUnknownTable
	}

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "localRecordRepository.Put").
			Str("table", table).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	var exists bool
	if err = tx.QueryRowContext(ctx, recordExists, table, rec.ID).Scan(&exists); err != nil {
		log.Err(err).
			Str("func", "localRecordRepository.Put").
			Str("table", table).
			Str("id", rec.ID).
			Msg("failed to check record existence")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if _, err = tx.ExecContext(ctx, upsertRecord,
		table, rec.ID, rec.UpdatedAt, rec.Deleted, recordData(rec),
	); err != nil {
		log.Err(err).
			Str("func", "localRecordRepository.Put").
			Str("table", table).
			Str("id", rec.ID).
			Msg("failed to upsert record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	l.mu.RLock()
	for _, listener := range l.listeners {
		if exists {
			listener.RecordUpdated(ctx, tx, table, rec)
		} else {
			listener.RecordCreated(ctx, tx, table, rec)
		}
	}
	l.mu.RUnlock()

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).
			Str("func", "localRecordRepository.Put").
			Str("table", table).
			Str("id", rec.ID).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}

	return nil
}

// MarkDeleted soft-deletes a record. Deleting a missing record is a no-op:
// nothing is written and no listeners fire.
func (l *localRecordRepository) MarkDeleted(ctx context.Context, table string, id string, at time.Time) error {
	log := logger.FromContext(ctx)

	if !models.KnownTable(table) {
		return ErrUnknownTable
	}

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "localRecordRepository.MarkDeleted").
			Str("table", table).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, softDeleteRecord, at, table, id)
	if err != nil {
		log.Err(err).
			Str("func", "localRecordRepository.MarkDeleted").
			Str("table", table).
			Str("id", id).
			Msg("failed to execute soft delete")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		log.Debug().
			Str("func", "localRecordRepository.MarkDeleted").
			Str("table", table).
			Str("id", id).
			Msg("record not found, nothing to delete")
		return tx.Commit()
	}

	rec := models.Record{ID: id, UpdatedAt: at, Deleted: true}

	l.mu.RLock()
	for _, listener := range l.listeners {
		listener.RecordDeleted(ctx, tx, table, rec)
	}
	l.mu.RUnlock()

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).
			Str("func", "localRecordRepository.MarkDeleted").
			Str("table", table).
			Str("id", id).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		rec  models.Record
		data sql.NullString
	)

	if err := row.Scan(&rec.ID, &rec.UpdatedAt, &rec.Deleted, &data); err != nil {
		return models.Record{}, err
	}

	if data.Valid && data.String != "" {
		rec.Data = json.RawMessage(data.String)
	}

	return rec, nil
}

// recordData converts the opaque document to a driver-friendly value,
// mapping an absent document to NULL.
func recordData(rec models.Record) any {
	if len(rec.Data) == 0 {
		return nil
	}
	return string(rec.Data)
}
