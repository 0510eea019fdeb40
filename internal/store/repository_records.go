// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/models"
)

// recordRepository is the PostgreSQL-backed implementation of
// [RecordRepository]. Rows carry a row_version stamped with the account
// version in force when they were last written, which makes delta pulls a
// single indexed range scan.
type recordRepository struct {
	*DB
	logger *logger.Logger
}

// NewRecordRepository constructs a [RecordRepository] backed by the provided
// database connection and logger.
func NewRecordRepository(db *DB, logger *logger.Logger) RecordRepository {
	return &recordRepository{
		DB:     db,
		logger: logger,
	}
}

// storedWins decides the write conflict: the stored row survives only when
// its timestamp is strictly newer than the incoming change. Equal timestamps
// let the incoming change through, so a client re-pushing its own write is
// never reported as a conflict.
func storedWins(stored time.Time, incoming time.Time) bool {
	return stored.After(incoming)
}

// Delta returns every row whose row_version is greater than sinceVersion,
// grouped per table. Live rows become upserts with their full document;
// soft-deleted rows are reported by id only.
func (r *recordRepository) Delta(ctx context.Context, userID int64, sinceVersion int64) (map[string]models.TableChanges, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.Select("tbl", "id", "updated_at", "deleted", "data").
		From("records").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"row_version": sinceVersion}).
		OrderBy("tbl", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Delta").
			Int64("user_id", userID).
			Msg("failed to build delta query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, queryErr := r.DB.QueryContext(ctx, query, args...)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "recordRepository.Delta").
			Int64("user_id", userID).
			Int64("since_version", sinceVersion).
			Msg("failed to execute delta query")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	changes := make(map[string]models.TableChanges, len(models.SyncTables))

	for rows.Next() {
		var (
			table string
			rec   models.Record
			data  sql.NullString
		)

		if scanErr := rows.Scan(&table, &rec.ID, &rec.UpdatedAt, &rec.Deleted, &data); scanErr != nil {
			log.Err(scanErr).
				Str("func", "recordRepository.Delta").
				Int64("user_id", userID).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		tc := changes[table]
		if rec.Deleted {
			tc.Deletes = append(tc.Deletes, rec.ID)
		} else {
			if data.Valid && data.String != "" {
				rec.Data = json.RawMessage(data.String)
			}
			tc.Upserts = append(tc.Upserts, rec)
		}
		changes[table] = tc
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "recordRepository.Delta").
			Int64("user_id", userID).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return changes, nil
}

// ApplyPush applies client changes in arrival order inside one transaction.
//
// The account row is locked first, so concurrent pushes from two devices of
// the same account serialise instead of interleaving. Each change is checked
// against the stored row under FOR UPDATE: when the stored timestamp is
// strictly newer the change is dropped and its record id collected as a
// conflict. The account version is bumped exactly once when at least one
// change applies, and every applied row is stamped with the new version so
// the next delta pull picks it up.
func (r *recordRepository) ApplyPush(ctx context.Context, userID int64, changes []models.LocalChange) (int64, []string, error) {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.ApplyPush").
			Int64("user_id", userID).
			Msg("failed to begin transaction")
		return 0, nil, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	var currentVersion int64
	if err = tx.QueryRowContext(ctx, getAccountForUpdate, userID).Scan(&currentVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrAccountNotFound
		}
		log.Err(err).
			Str("func", "recordRepository.ApplyPush").
			Int64("user_id", userID).
			Msg("failed to lock account row")
		return 0, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	newVersion := currentVersion + 1
	conflictIDs := make([]string, 0)
	applied := 0

	for idx, change := range changes {
		if !models.KnownTable(change.Table) {
			return 0, nil, fmt.Errorf("change at index %d: %w", idx, ErrUnknownTable)
		}

		var (
			storedUpdatedAt time.Time
			storedDeleted   bool
		)

		rowErr := tx.QueryRowContext(ctx, getServerRecord, userID, change.Table, change.RecordID).
			Scan(&storedUpdatedAt, &storedDeleted)
		exists := true
		if rowErr != nil {
			if !errors.Is(rowErr, sql.ErrNoRows) {
				log.Err(rowErr).
					Str("func", "recordRepository.ApplyPush").
					Int("iteration", idx+1).
					Str("record_id", change.RecordID).
					Msg("failed to lock stored record")
				return 0, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, rowErr)
			}
			exists = false
		}

		if exists && storedWins(storedUpdatedAt, change.Timestamp) {
			log.Debug().
				Str("func", "recordRepository.ApplyPush").
				Int("iteration", idx+1).
				Str("table", change.Table).
				Str("record_id", change.RecordID).
				Time("stored_updated_at", storedUpdatedAt).
				Time("change_ts", change.Timestamp).
				Msg("stored row is newer, dropping change")
			conflictIDs = append(conflictIDs, change.RecordID)
			continue
		}

		switch change.Operation {
		case models.OpDelete:
			_, err = tx.ExecContext(ctx, tombstoneServerRecord,
				userID, change.Table, change.RecordID, change.Timestamp, newVersion)
		case models.OpCreate, models.OpUpdate:
			if change.Payload == nil {
				log.Warn().
					Str("func", "recordRepository.ApplyPush").
					Int("iteration", idx+1).
					Str("record_id", change.RecordID).
					Msg("change carries no payload, skipping")
				continue
			}
			_, err = tx.ExecContext(ctx, upsertServerRecord,
				userID, change.Table, change.RecordID,
				change.Payload.UpdatedAt, change.Payload.Deleted, recordData(*change.Payload), newVersion)
		default:
			return 0, nil, fmt.Errorf("change at index %d: unknown operation %q", idx, change.Operation)
		}
		if err != nil {
			log.Err(err).
				Str("func", "recordRepository.ApplyPush").
				Int("iteration", idx+1).
				Str("table", change.Table).
				Str("record_id", change.RecordID).
				Msg("failed to apply change")
			return 0, nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}

		applied++
	}

	resultVersion := currentVersion
	if applied > 0 {
		if err = tx.QueryRowContext(ctx, bumpAccountVersion, userID).Scan(&resultVersion); err != nil {
			log.Err(err).
				Str("func", "recordRepository.ApplyPush").
				Int64("user_id", userID).
				Msg("failed to bump account version")
			return 0, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).
			Str("func", "recordRepository.ApplyPush").
			Int64("user_id", userID).
			Int("changes_count", len(changes)).
			Msg("failed to commit transaction")
		return 0, nil, fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}

	log.Info().
		Str("func", "recordRepository.ApplyPush").
		Int64("user_id", userID).
		Int("applied", applied).
		Int("conflicts", len(conflictIDs)).
		Int64("version", resultVersion).
		Msg("push applied")

	return resultVersion, conflictIDs, nil
}
