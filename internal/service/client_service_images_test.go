package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

func newTestClientImages(t *testing.T, server *fakeServerAdapter) (ClientImageService, *fakeServerAdapter) {
	t.Helper()

	if server == nil {
		server = newFakeServerAdapter()
	}
	storages := newTestClientStorages(t)

	return NewClientImageService(storages.Images, server, logger.Nop()), server
}

func TestClientImageService_StoreValidatesBeforeCaching(t *testing.T) {
	svc, _ := newTestClientImages(t, nil)
	ctx := context.Background()

	_, err := svc.Store(ctx, bytes.Repeat([]byte("x"), models.MaxImageSize+1), "image/jpeg")
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = svc.Store(ctx, []byte("not an image"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedImageType)
}

func TestClientImageService_StoreAndExists(t *testing.T) {
	svc, _ := newTestClientImages(t, nil)
	ctx := context.Background()

	body := []byte("jacket photo bytes")
	ref, err := svc.Store(ctx, body, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, utils.ContentDigest(body), ref.Hash)
	assert.Equal(t, int64(len(body)), ref.Size)

	exists, err := svc.Exists(ctx, ref.Hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClientImageService_UploadSkipsWhenServerHasBytes(t *testing.T) {
	svc, server := newTestClientImages(t, nil)
	ctx := context.Background()

	body := []byte("deduplicated photo")
	ref, err := svc.Store(ctx, body, "image/png")
	require.NoError(t, err)

	// another device already uploaded the identical bytes
	server.images[ref.Hash] = body
	server.imageTypes[ref.Hash] = "image/png"

	transferred, err := svc.Upload(ctx, ref)
	require.NoError(t, err)
	assert.False(t, transferred)
	assert.Equal(t, 1, server.presignCalls)
	assert.Zero(t, server.uploadCalls, "the presign short-circuit must prevent the byte transfer")
}

func TestClientImageService_UploadTransfersNewBytes(t *testing.T) {
	svc, server := newTestClientImages(t, nil)
	ctx := context.Background()

	body := []byte("first upload of these bytes")
	ref, err := svc.Store(ctx, body, "image/webp")
	require.NoError(t, err)

	transferred, err := svc.Upload(ctx, ref)
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, body, server.images[ref.Hash])
}

func TestClientImageService_DownloadVerifiesDigest(t *testing.T) {
	svc, server := newTestClientImages(t, nil)
	ctx := context.Background()

	body := []byte("genuine bytes")
	hash := utils.ContentDigest(body)

	// a corrupted transfer is rejected before the cache accepts it
	server.images[hash] = []byte("tampered bytes")
	server.imageTypes[hash] = "image/png"

	_, _, err := svc.Download(ctx, hash)
	assert.ErrorIs(t, err, ErrHashMismatch)

	cached, cacheErr := svc.Exists(ctx, hash)
	require.NoError(t, cacheErr)
	assert.False(t, cached)

	// intact bytes round-trip into the cache
	server.images[hash] = body
	got, ref, err := svc.Download(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, hash, ref.Hash)

	cached, cacheErr = svc.Exists(ctx, hash)
	require.NoError(t, cacheErr)
	assert.True(t, cached)
}

func TestClientImageService_SyncAllPartitionsWork(t *testing.T) {
	svc, server := newTestClientImages(t, nil)
	ctx := context.Background()

	localOnly := []byte("only cached locally")
	remoteOnly := []byte("only stored remotely")
	everywhere := []byte("already on both sides")

	localRef, err := svc.Store(ctx, localOnly, "image/jpeg")
	require.NoError(t, err)

	remoteHash := utils.ContentDigest(remoteOnly)
	server.images[remoteHash] = remoteOnly
	server.imageTypes[remoteHash] = "image/png"

	bothRef, err := svc.Store(ctx, everywhere, "image/gif")
	require.NoError(t, err)
	server.images[bothRef.Hash] = everywhere
	server.imageTypes[bothRef.Hash] = "image/gif"

	// a reference no side has yet cannot be transferred
	nowhereHash := utils.ContentDigest([]byte("never uploaded anywhere"))

	refs := []models.ImageRef{
		localRef,
		{Hash: remoteHash},
		bothRef,
		{Hash: nowhereHash},
	}

	var progressCalls int
	stats, err := svc.SyncAll(ctx, refs, func(done, total int) {
		progressCalls++
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 2, progressCalls)

	// both sides now hold the full set that exists anywhere
	assert.Equal(t, localOnly, server.images[localRef.Hash])
	cached, err := svc.Exists(ctx, remoteHash)
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestClientImageService_SyncAllContinuesPastRejectedImage(t *testing.T) {
	server := newFakeServerAdapter()
	storages := newTestClientStorages(t)
	svc := NewClientImageService(storages.Images, server, logger.Nop())
	ctx := context.Background()

	goodBody := []byte("good jacket photo")
	good, err := svc.Store(ctx, goodBody, "image/jpeg")
	require.NoError(t, err)

	// Store refuses this content type, so seed the cache directly
	badBody := []byte("scanned receipt")
	bad := models.ImageRef{
		Hash:        utils.ContentDigest(badBody),
		ContentType: "application/pdf",
		Size:        int64(len(badBody)),
	}
	require.NoError(t, storages.Images.Put(ctx, bad, badBody))

	stats, err := svc.SyncAll(ctx, []models.ImageRef{bad, good}, nil)
	require.NoError(t, err, "a rejected image must not fail the pass")

	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, goodBody, server.images[good.Hash])
	assert.NotContains(t, server.images, bad.Hash)
}

func TestClientImageService_SyncAllEmptyPlan(t *testing.T) {
	svc, _ := newTestClientImages(t, nil)

	stats, err := svc.SyncAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Uploaded)
	assert.Zero(t, stats.Downloaded)
}
