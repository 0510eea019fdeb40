package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

// stubOutbox records AppendTx calls and can be scripted to fail.
type stubOutbox struct {
	appended  []models.LocalChange
	appendErr error
}

func (s *stubOutbox) AppendTx(_ context.Context, _ store.Execer, change models.LocalChange) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, change)
	return nil
}

func (s *stubOutbox) List(_ context.Context) ([]models.LocalChange, error) { return s.appended, nil }
func (s *stubOutbox) Delete(_ context.Context, _ []int64) error            { return nil }
func (s *stubOutbox) Clear(_ context.Context) error                        { s.appended = nil; return nil }
func (s *stubOutbox) Count(_ context.Context) (int, error)                 { return len(s.appended), nil }

func TestChangeTracker_CapturesMutations(t *testing.T) {
	outbox := &stubOutbox{}
	pokes := 0
	tracker := NewChangeTracker(outbox, func() { pokes++ }, logger.Nop())
	ctx := context.Background()

	at := time.Now().UTC()
	rec := models.Record{ID: "item-1", UpdatedAt: at, Data: []byte(`{"name":"socks"}`)}

	tracker.RecordCreated(ctx, nil, models.TableItems, rec)
	tracker.RecordUpdated(ctx, nil, models.TableItems, rec)
	tracker.RecordDeleted(ctx, nil, models.TableItems, models.Record{ID: "item-1", UpdatedAt: at, Deleted: true})

	require.Len(t, outbox.appended, 3)
	assert.Equal(t, 3, pokes)

	create := outbox.appended[0]
	assert.Equal(t, models.OpCreate, create.Operation)
	assert.Equal(t, models.TableItems, create.Table)
	assert.Equal(t, "item-1", create.RecordID)
	assert.Equal(t, at, create.Timestamp)
	require.NotNil(t, create.Payload, "creates carry the full post-write snapshot")

	assert.Equal(t, models.OpUpdate, outbox.appended[1].Operation)

	del := outbox.appended[2]
	assert.Equal(t, models.OpDelete, del.Operation)
	assert.Nil(t, del.Payload, "deletes carry the record id only")
}

func TestChangeTracker_DisabledSkipsCapture(t *testing.T) {
	outbox := &stubOutbox{}
	pokes := 0
	tracker := NewChangeTracker(outbox, func() { pokes++ }, logger.Nop())
	ctx := context.Background()

	assert.True(t, tracker.Enabled())
	tracker.SetEnabled(false)

	tracker.RecordCreated(ctx, nil, models.TableItems, models.Record{ID: "item-1"})
	assert.Empty(t, outbox.appended)
	assert.Zero(t, pokes)

	tracker.SetEnabled(true)
	tracker.RecordCreated(ctx, nil, models.TableItems, models.Record{ID: "item-1"})
	assert.Len(t, outbox.appended, 1)
	assert.Equal(t, 1, pokes)
}

func TestChangeTracker_AppendFailureDoesNotPoke(t *testing.T) {
	outbox := &stubOutbox{appendErr: assert.AnError}
	pokes := 0
	tracker := NewChangeTracker(outbox, func() { pokes++ }, logger.Nop())

	// a failed capture is logged and swallowed; the mutation itself is not
	// the tracker's to fail
	tracker.RecordUpdated(context.Background(), nil, models.TableItems, models.Record{ID: "item-1"})
	assert.Zero(t, pokes)
}
