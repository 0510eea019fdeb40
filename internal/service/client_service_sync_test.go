package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

// fakeServerRow is one stored record with the account version it was last
// written at.
type fakeServerRow struct {
	rec     models.Record
	version int64
}

// fakeServerAdapter emulates the remote store in memory: version-cursor
// pulls, last-write-wins pushes and digest-addressed image storage. Sharing
// one instance between two engines emulates two devices of one account.
type fakeServerAdapter struct {
	mu         sync.Mutex
	token      string
	version    int64
	records    map[string]map[string]fakeServerRow
	images     map[string][]byte
	imageTypes map[string]string

	validateErr error
	logoutErr   error
	pullErr     error
	pushErr     error

	pullCalls    int
	pushCalls    int
	presignCalls int
	uploadCalls  int
}

func newFakeServerAdapter() *fakeServerAdapter {
	return &fakeServerAdapter{
		records:    make(map[string]map[string]fakeServerRow),
		images:     make(map[string][]byte),
		imageTypes: make(map[string]string),
	}
}

func (f *fakeServerAdapter) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeServerAdapter) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeServerAdapter) RequestMagicLink(_ context.Context, _ string) (models.MagicLinkResponse, error) {
	return models.MagicLinkResponse{Success: true, Message: "check your inbox"}, nil
}

func (f *fakeServerAdapter) Verify(_ context.Context, token string) (models.Session, error) {
	session := models.Session{
		Token:    "session-" + token,
		UserID:   1,
		Username: "ana",
		Email:    "ana@example.com",
	}
	f.SetToken(session.Token)
	return session, nil
}

func (f *fakeServerAdapter) Validate(_ context.Context) error { return f.validateErr }

func (f *fakeServerAdapter) Logout(_ context.Context) error {
	f.SetToken("")
	return f.logoutErr
}

func (f *fakeServerAdapter) Pull(_ context.Context, req models.PullRequest) (models.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pullCalls++
	if f.pullErr != nil {
		return models.PullResponse{}, f.pullErr
	}

	changes := make(map[string]models.TableChanges)
	for table, rows := range f.records {
		var tc models.TableChanges
		for _, row := range rows {
			if row.version <= req.SinceVersion {
				continue
			}
			if row.rec.Deleted {
				tc.Deletes = append(tc.Deletes, row.rec.ID)
			} else {
				tc.Upserts = append(tc.Upserts, row.rec)
			}
		}
		if len(tc.Upserts) > 0 || len(tc.Deletes) > 0 {
			changes[table] = tc
		}
	}

	return models.PullResponse{Success: true, Version: f.version, Changes: changes}, nil
}

func (f *fakeServerAdapter) Push(_ context.Context, req models.PushRequest) (models.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pushCalls++
	if f.pushErr != nil {
		return models.PushResponse{}, f.pushErr
	}

	newVersion := f.version + 1
	applied := 0
	var conflictIDs []string

	for _, change := range req.Changes {
		rows, ok := f.records[change.Table]
		if !ok {
			rows = make(map[string]fakeServerRow)
			f.records[change.Table] = rows
		}

		incomingAt := change.Timestamp
		if change.Payload != nil {
			incomingAt = change.Payload.UpdatedAt
		}

		if stored, exists := rows[change.RecordID]; exists && stored.rec.UpdatedAt.After(incomingAt) {
			conflictIDs = append(conflictIDs, change.RecordID)
			continue
		}

		var rec models.Record
		if change.Operation == models.OpDelete {
			rec = models.Record{ID: change.RecordID, UpdatedAt: incomingAt, Deleted: true}
		} else {
			rec = *change.Payload
		}
		rows[change.RecordID] = fakeServerRow{rec: rec, version: newVersion}
		applied++
	}

	if applied > 0 {
		f.version = newVersion
	}

	return models.PushResponse{Success: true, Version: f.version, ConflictIDs: conflictIDs}, nil
}

func (f *fakeServerAdapter) PresignUpload(_ context.Context, req models.PresignUploadRequest) (models.PresignUploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.presignCalls++
	if _, ok := f.images[req.Hash]; ok {
		ref := models.ImageRef{Hash: req.Hash, ContentType: f.imageTypes[req.Hash], Size: int64(len(f.images[req.Hash]))}
		return models.PresignUploadResponse{Success: true, AlreadyExists: true, ImageRef: &ref}, nil
	}
	return models.PresignUploadResponse{Success: true, UploadURL: "/api/images/upload/" + req.Hash}, nil
}

func (f *fakeServerAdapter) UploadImage(_ context.Context, hash string, contentType string, body []byte) (models.ImageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploadCalls++
	if utils.ContentDigest(body) != hash {
		return models.ImageRef{}, adapter.ErrHashMismatch
	}
	f.images[hash] = body
	f.imageTypes[hash] = contentType
	return models.ImageRef{Hash: hash, ContentType: contentType, Size: int64(len(body))}, nil
}

func (f *fakeServerAdapter) DownloadImage(_ context.Context, hash string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.images[hash]
	if !ok {
		return nil, "", adapter.ErrNotFound
	}
	return body, f.imageTypes[hash], nil
}

func (f *fakeServerAdapter) CheckImage(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[hash]
	return ok, nil
}

func newTestClientStorages(t *testing.T) *store.ClientStorages {
	t.Helper()

	cfg := config.ClientStorage{DB: config.ClientDB{DSN: filepath.Join(t.TempDir(), "client.db")}}
	storages, err := store.NewClientStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.DB.Close() })

	return storages
}

// newTestEngine wires a full client engine over an isolated SQLite file.
// Debounce and interval are effectively infinite so cycles only run when a
// test invokes them.
func newTestEngine(t *testing.T, server adapter.ServerAdapter) (*ClientServices, *store.ClientStorages) {
	t.Helper()

	storages := newTestClientStorages(t)
	cfg := &config.ClientConfig{Sync: config.ClientSync{Interval: time.Hour, Debounce: time.Hour}}

	return NewClientServices(storages, server, cfg, logger.Nop()), storages
}

func signIn(t *testing.T, storages *store.ClientStorages) {
	t.Helper()

	require.NoError(t, storages.Meta.Save(context.Background(), models.SyncMeta{
		UserID:       1,
		Username:     "ana",
		Email:        "ana@example.com",
		SessionToken: "session-token",
		SyncEnabled:  true,
	}))
}

func putRecord(t *testing.T, storages *store.ClientStorages, table, id string, at time.Time, doc string) {
	t.Helper()

	require.NoError(t, storages.Records.Put(context.Background(), table, models.Record{
		ID:        id,
		UpdatedAt: at,
		Data:      json.RawMessage(doc),
	}))
}

func TestClientSyncService_FullSyncRequiresSignIn(t *testing.T) {
	services, _ := newTestEngine(t, newFakeServerAdapter())

	_, err := services.Sync.FullSync(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestClientSyncService_FullSyncPushesLocalEdits(t *testing.T) {
	server := newFakeServerAdapter()
	services, storages := newTestEngine(t, server)
	ctx := context.Background()
	signIn(t, storages)

	now := time.Now().UTC().Truncate(time.Second)
	putRecord(t, storages, models.TableItems, "item-1", now, `{"name":"rain jacket"}`)
	putRecord(t, storages, models.TableTrips, "trip-1", now, `{"destination":"Bergen"}`)

	pending, err := storages.Outbox.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending)

	result, err := services.Sync.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pushed)
	assert.Zero(t, result.Conflicts)
	assert.Empty(t, result.Error)

	// the outbox drained and the cursor advanced to the push version
	pending, err = storages.Outbox.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	meta, err := storages.Meta.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.version, meta.LastSyncVersion)
	assert.NotNil(t, meta.LastSyncAt)
	assert.Empty(t, meta.LastError)

	assert.Equal(t, "rain jacket", extractName(t, server.records[models.TableItems]["item-1"].rec))
}

func TestClientSyncService_PullApplyIsIdempotent(t *testing.T) {
	server := newFakeServerAdapter()
	server.version = 2
	server.records[models.TableItems] = map[string]fakeServerRow{
		"item-1": {rec: models.Record{ID: "item-1", UpdatedAt: time.Now().UTC(), Data: json.RawMessage(`{"name":"boots"}`)}, version: 1},
		"item-2": {rec: models.Record{ID: "item-2", UpdatedAt: time.Now().UTC(), Deleted: true}, version: 2},
	}

	services, storages := newTestEngine(t, server)
	ctx := context.Background()
	signIn(t, storages)

	result, err := services.Sync.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)
	assert.Zero(t, result.Pushed)

	// pulled rows never loop back into the outbox
	pending, err := storages.Outbox.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	rec, err := storages.Records.Get(ctx, models.TableItems, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "boots", extractName(t, rec))

	// a second cycle finds the cursor at the head and applies nothing
	result, err = services.Sync.FullSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Pulled)

	// change capture is back on after the cycle
	assert.True(t, services.Tracker.Enabled())
}

// faultyRecords wraps a real record repository and refuses writes for one id.
type faultyRecords struct {
	store.LocalRecordRepository

	mu     sync.Mutex
	failID string
}

func (f *faultyRecords) setFailID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failID = id
}

func (f *faultyRecords) Put(ctx context.Context, table string, rec models.Record) error {
	f.mu.Lock()
	failID := f.failID
	f.mu.Unlock()

	if failID != "" && rec.ID == failID {
		return assert.AnError
	}
	return f.LocalRecordRepository.Put(ctx, table, rec)
}

func TestClientSyncService_ApplyFailureSkipsRecordAndKeepsCursor(t *testing.T) {
	server := newFakeServerAdapter()
	server.version = 2
	now := time.Now().UTC().Truncate(time.Second)
	server.records[models.TableItems] = map[string]fakeServerRow{
		"item-good": {rec: models.Record{ID: "item-good", UpdatedAt: now, Data: json.RawMessage(`{"name":"boots"}`)}, version: 1},
		"item-bad":  {rec: models.Record{ID: "item-bad", UpdatedAt: now, Data: json.RawMessage(`{"name":"poncho"}`)}, version: 2},
	}

	storages := newTestClientStorages(t)
	faulty := &faultyRecords{LocalRecordRepository: storages.Records}
	faulty.setFailID("item-bad")
	storages.Records = faulty

	cfg := &config.ClientConfig{Sync: config.ClientSync{Interval: time.Hour, Debounce: time.Hour}}
	services := NewClientServices(storages, server, cfg, logger.Nop())
	ctx := context.Background()
	signIn(t, storages)

	result, err := services.Sync.FullSync(ctx)
	require.NoError(t, err, "one stuck record must not fail the cycle")
	assert.Equal(t, 1, result.Pulled)

	// the healthy record landed, the stuck one did not
	rec, err := storages.Records.Get(ctx, models.TableItems, "item-good")
	require.NoError(t, err)
	assert.Equal(t, "boots", extractName(t, rec))
	_, err = storages.Records.Get(ctx, models.TableItems, "item-bad")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	// the cursor stayed behind and the partial failure is on record
	meta, err := storages.Meta.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, meta.LastSyncVersion)
	assert.Contains(t, meta.LastError, "failed to apply")
	assert.NotNil(t, meta.LastSyncAt)

	// once the write succeeds the next pull re-delivers both records
	faulty.setFailID("")
	result, err = services.Sync.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)

	rec, err = storages.Records.Get(ctx, models.TableItems, "item-bad")
	require.NoError(t, err)
	assert.Equal(t, "poncho", extractName(t, rec))

	meta, err = storages.Meta.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.version, meta.LastSyncVersion)
	assert.Empty(t, meta.LastError)
}

func TestClientSyncService_ConcurrentCycleRejected(t *testing.T) {
	services, storages := newTestEngine(t, newFakeServerAdapter())
	signIn(t, storages)

	svc, ok := services.Sync.(*clientSyncService)
	require.True(t, ok)
	svc.running.Store(true)
	assert.True(t, services.Sync.InProgress())

	_, err := services.Sync.FullSync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestClientSyncService_FailureRecordedInMeta(t *testing.T) {
	server := newFakeServerAdapter()
	server.pullErr = adapter.ErrUnauthorized

	services, storages := newTestEngine(t, server)
	ctx := context.Background()
	signIn(t, storages)

	result, err := services.Sync.FullSync(ctx)
	require.ErrorIs(t, err, adapter.ErrUnauthorized)
	assert.NotEmpty(t, result.Error)

	meta, err := storages.Meta.Get(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, meta.LastError)

	// the next successful cycle clears the recorded failure
	server.pullErr = nil
	_, err = services.Sync.FullSync(ctx)
	require.NoError(t, err)

	meta, err = storages.Meta.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, meta.LastError)
}

func TestSyncEngine_TwoDevicesLastWriteWins(t *testing.T) {
	server := newFakeServerAdapter()
	deviceA, storagesA := newTestEngine(t, server)
	deviceB, storagesB := newTestEngine(t, server)
	ctx := context.Background()
	signIn(t, storagesA)
	signIn(t, storagesB)

	base := time.Now().UTC().Truncate(time.Second)

	// device A creates the item and both devices converge on it
	putRecord(t, storagesA, models.TableItems, "item-1", base, `{"name":"original"}`)
	_, err := deviceA.Sync.FullSync(ctx)
	require.NoError(t, err)
	_, err = deviceB.Sync.FullSync(ctx)
	require.NoError(t, err)

	// both devices edit the same item; A's edit is newer
	putRecord(t, storagesA, models.TableItems, "item-1", base.Add(2*time.Hour), `{"name":"newer on A"}`)
	_, err = deviceA.Sync.FullSync(ctx)
	require.NoError(t, err)

	putRecord(t, storagesB, models.TableItems, "item-1", base.Add(time.Hour), `{"name":"older on B"}`)
	result, err := deviceB.Sync.FullSync(ctx)
	require.NoError(t, err)

	// B's stale edit loses and is not retried; the pull that preceded the
	// push already brought A's winning value down
	assert.Equal(t, 1, result.Conflicts)
	assert.Zero(t, result.Pushed)

	pending, err := storagesB.Outbox.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	rec, err := storagesB.Records.Get(ctx, models.TableItems, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "newer on A", extractName(t, rec))

	assert.Equal(t, "newer on A", extractName(t, server.records[models.TableItems]["item-1"].rec))
}

func TestSyncEngine_DeletePropagates(t *testing.T) {
	server := newFakeServerAdapter()
	deviceA, storagesA := newTestEngine(t, server)
	deviceB, storagesB := newTestEngine(t, server)
	ctx := context.Background()
	signIn(t, storagesA)
	signIn(t, storagesB)

	base := time.Now().UTC().Truncate(time.Second)

	putRecord(t, storagesA, models.TableWishlist, "wish-1", base, `{"name":"new tent"}`)
	_, err := deviceA.Sync.FullSync(ctx)
	require.NoError(t, err)
	_, err = deviceB.Sync.FullSync(ctx)
	require.NoError(t, err)

	require.NoError(t, storagesA.Records.MarkDeleted(ctx, models.TableWishlist, "wish-1", base.Add(time.Minute)))
	_, err = deviceA.Sync.FullSync(ctx)
	require.NoError(t, err)

	result, err := deviceB.Sync.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)

	rec, err := storagesB.Records.Get(ctx, models.TableWishlist, "wish-1")
	require.NoError(t, err)
	assert.True(t, rec.Deleted, "the soft delete must reach the second device")
}

// extractName pulls the name field out of a record's domain document.
func extractName(t *testing.T, rec models.Record) string {
	t.Helper()

	var doc struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Data, &doc))
	return doc.Name
}
