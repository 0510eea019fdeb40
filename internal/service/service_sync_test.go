package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

// stubRecordRepository is a scripted [store.RecordRepository].
type stubRecordRepository struct {
	delta       map[string]models.TableChanges
	deltaCalls  int
	pushVersion int64
	conflictIDs []string
	pushed      []models.LocalChange
}

func (s *stubRecordRepository) Delta(_ context.Context, _ int64, _ int64) (map[string]models.TableChanges, error) {
	s.deltaCalls++
	return s.delta, nil
}

func (s *stubRecordRepository) ApplyPush(_ context.Context, _ int64, changes []models.LocalChange) (int64, []string, error) {
	s.pushed = append(s.pushed, changes...)
	return s.pushVersion, s.conflictIDs, nil
}

func TestSyncService_PullSkipsDeltaAtHead(t *testing.T) {
	accounts := newStubAccountRepository()
	accounts.accounts["ana@example.com"] = models.Account{UserID: 1, Email: "ana@example.com", Version: 7}
	records := &stubRecordRepository{}
	svc := NewSyncService(accounts, records, newStubImageRepository(), logger.Nop())

	resp, err := svc.Pull(context.Background(), 1, models.PullRequest{SinceVersion: 7})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(7), resp.Version)
	assert.Empty(t, resp.Changes)
	assert.Zero(t, records.deltaCalls, "a cursor at the head must not hit the records table")
}

func TestSyncService_PullReturnsDelta(t *testing.T) {
	accounts := newStubAccountRepository()
	accounts.accounts["ana@example.com"] = models.Account{UserID: 1, Email: "ana@example.com", Version: 9}
	records := &stubRecordRepository{
		delta: map[string]models.TableChanges{
			models.TableItems: {
				Upserts: []models.Record{{ID: "item-1", UpdatedAt: time.Now()}},
				Deletes: []string{"item-2"},
			},
		},
	}
	svc := NewSyncService(accounts, records, newStubImageRepository(), logger.Nop())

	resp, err := svc.Pull(context.Background(), 1, models.PullRequest{SinceVersion: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(9), resp.Version)
	require.Contains(t, resp.Changes, models.TableItems)
	assert.Len(t, resp.Changes[models.TableItems].Upserts, 1)
	assert.Equal(t, []string{"item-2"}, resp.Changes[models.TableItems].Deletes)
}

func TestSyncService_PushRefreshesImageRefs(t *testing.T) {
	accounts := newStubAccountRepository()
	images := newStubImageRepository()
	hash := utils.ContentDigest([]byte("jacket photo"))
	records := &stubRecordRepository{pushVersion: 4, conflictIDs: []string{"item-lost"}}
	svc := NewSyncService(accounts, records, images, logger.Nop())

	doc := json.RawMessage(`{"name":"rain jacket","image":{"hash":"` + hash + `"}}`)
	req := models.PushRequest{
		LastSyncVersion: 3,
		Changes: []models.LocalChange{
			{
				ID: 1, Table: models.TableItems, RecordID: "item-won", Operation: models.OpUpdate,
				Timestamp: time.Now(),
				Payload:   &models.Record{ID: "item-won", UpdatedAt: time.Now(), Data: doc},
			},
			{
				ID: 2, Table: models.TableItems, RecordID: "item-lost", Operation: models.OpUpdate,
				Timestamp: time.Now(),
				Payload:   &models.Record{ID: "item-lost", UpdatedAt: time.Now(), Data: doc},
			},
			{
				ID: 3, Table: models.TableWishlist, RecordID: "wish-1", Operation: models.OpDelete,
				Timestamp: time.Now(),
			},
		},
	}

	resp, err := svc.Push(context.Background(), 1, req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(4), resp.Version)
	assert.Equal(t, []string{"item-lost"}, resp.ConflictIDs)

	// the reference index is refreshed for the applied upsert and emptied
	// for the delete; the conflicted record is left untouched
	require.Len(t, images.replaceReqs, 2)
	assert.Equal(t, replaceRefsCall{table: models.TableItems, recordID: "item-won", hashes: []string{hash}}, images.replaceReqs[0])
	assert.Equal(t, replaceRefsCall{table: models.TableWishlist, recordID: "wish-1", hashes: nil}, images.replaceReqs[1])
}
