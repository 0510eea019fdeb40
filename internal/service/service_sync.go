// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

type syncService struct {
	accounts store.AccountRepository
	records  store.RecordRepository
	images   store.ImageRepository
	logger   *logger.Logger
}

// NewSyncService constructs the server [SyncService].
func NewSyncService(accounts store.AccountRepository, records store.RecordRepository, images store.ImageRepository, logger *logger.Logger) SyncService {
	return &syncService{
		accounts: accounts,
		records:  records,
		images:   images,
		logger:   logger,
	}
}

// Pull returns the delta since req.SinceVersion plus the current account
// version. A cursor already at the head yields an empty delta, which the
// client applies as a no-op.
func (s *syncService) Pull(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
	log := logger.FromContext(ctx)

	account, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return models.PullResponse{}, fmt.Errorf("load account: %w", err)
	}

	changes := map[string]models.TableChanges{}
	if req.SinceVersion < account.Version {
		if changes, err = s.records.Delta(ctx, userID, req.SinceVersion); err != nil {
			return models.PullResponse{}, fmt.Errorf("load delta: %w", err)
		}
	}

	upserts, deletes := 0, 0
	for _, tc := range changes {
		upserts += len(tc.Upserts)
		deletes += len(tc.Deletes)
	}
	log.Debug().
		Str("func", "syncService.Pull").
		Int64("user_id", userID).
		Int64("since_version", req.SinceVersion).
		Int64("version", account.Version).
		Int("upserts", upserts).
		Int("deletes", deletes).
		Msg("pull served")

	return models.PullResponse{Success: true, Version: account.Version, Changes: changes}, nil
}

// Push applies the client's ordered batch and refreshes the image reference
// index for every record that went through. Reference upkeep is best-effort:
// a failed index write is logged but does not fail the push, the janitor
// just sees a stale reference until the next push of that record.
func (s *syncService) Push(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error) {
	log := logger.FromContext(ctx)

	version, conflictIDs, err := s.records.ApplyPush(ctx, userID, req.Changes)
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("apply push: %w", err)
	}

	conflicted := make(map[string]struct{}, len(conflictIDs))
	for _, id := range conflictIDs {
		conflicted[id] = struct{}{}
	}

	for _, change := range req.Changes {
		if _, lost := conflicted[change.RecordID]; lost {
			continue
		}

		var hashes []string
		if change.Operation != models.OpDelete && change.Payload != nil {
			for _, ref := range models.CollectImageRefs([]models.Record{*change.Payload}) {
				hashes = append(hashes, ref.Hash)
			}
		}

		if refErr := s.images.ReplaceRefs(ctx, userID, change.Table, change.RecordID, hashes); refErr != nil {
			log.Err(refErr).
				Str("func", "syncService.Push").
				Str("table", change.Table).
				Str("record_id", change.RecordID).
				Msg("failed to refresh image refs")
		}
	}

	log.Info().
		Str("func", "syncService.Push").
		Int64("user_id", userID).
		Int("changes", len(req.Changes)).
		Int("conflicts", len(conflictIDs)).
		Int64("version", version).
		Msg("push served")

	return models.PushResponse{Success: true, Version: version, ConflictIDs: conflictIDs}, nil
}
