package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

// stubAuthService is a scripted [service.AuthService].
type stubAuthService struct {
	magicResp   models.MagicLinkResponse
	magicErr    error
	session     models.Session
	verifyErr   error
	validateOK  bool
	validateErr error
	revoked     []string
}

func (s *stubAuthService) RequestMagicLink(_ context.Context, _ string) (models.MagicLinkResponse, error) {
	return s.magicResp, s.magicErr
}

func (s *stubAuthService) Verify(_ context.Context, _ string) (models.Session, error) {
	return s.session, s.verifyErr
}

func (s *stubAuthService) Validate(_ context.Context, _ string) (bool, error) {
	return s.validateOK, s.validateErr
}

func (s *stubAuthService) Logout(_ context.Context, sessionID string) error {
	s.revoked = append(s.revoked, sessionID)
	return nil
}

// stubSyncService records the identity the handler resolved from the token.
type stubSyncService struct {
	pullResp   models.PullResponse
	pushResp   models.PushResponse
	err        error
	lastUserID int64
}

func (s *stubSyncService) Pull(_ context.Context, userID int64, _ models.PullRequest) (models.PullResponse, error) {
	s.lastUserID = userID
	return s.pullResp, s.err
}

func (s *stubSyncService) Push(_ context.Context, userID int64, _ models.PushRequest) (models.PushResponse, error) {
	s.lastUserID = userID
	return s.pushResp, s.err
}

// stubImageService is a scripted [service.ImageService].
type stubImageService struct {
	presignResp models.PresignUploadResponse
	presignErr  error
	savedRef    models.ImageRef
	saveErr     error
	loadBody    []byte
	loadRef     models.ImageRef
	loadErr     error
	exists      bool
}

func (s *stubImageService) Presign(_ context.Context, _ int64, _ models.PresignUploadRequest) (models.PresignUploadResponse, error) {
	return s.presignResp, s.presignErr
}

func (s *stubImageService) Save(_ context.Context, _ string, _ string, _ []byte) (models.ImageRef, error) {
	return s.savedRef, s.saveErr
}

func (s *stubImageService) Load(_ context.Context, _ string) ([]byte, models.ImageRef, error) {
	return s.loadBody, s.loadRef, s.loadErr
}

func (s *stubImageService) Check(_ context.Context, _ string) (bool, error) {
	return s.exists, nil
}

type handlerFixture struct {
	auth   *stubAuthService
	sync   *stubSyncService
	images *stubImageService
	server *httptest.Server
	cfg    config.Auth
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		auth:   &stubAuthService{validateOK: true},
		sync:   &stubSyncService{},
		images: &stubImageService{},
		cfg: config.Auth{
			TokenSignKey:  "handler_test_key",
			TokenIssuer:   "packsync-test",
			TokenDuration: time.Hour,
			MagicLinkTTL:  15 * time.Minute,
		},
	}

	services := &service.Services{Auth: f.auth, Sync: f.sync, Images: f.images}
	handler := NewHandler(services, f.cfg, logger.Nop())
	f.server = httptest.NewServer(handler.Init())
	t.Cleanup(f.server.Close)

	return f
}

// bearer mints a valid session token for the fixture's signing config.
func (f *handlerFixture) bearer(t *testing.T, userID int64, sessionID string) string {
	t.Helper()

	token, err := utils.GenerateSessionToken(f.cfg.TokenIssuer, userID, sessionID, f.cfg.TokenDuration, f.cfg.TokenSignKey)
	require.NoError(t, err)
	return "Bearer " + token.SignedString
}

func (f *handlerFixture) do(t *testing.T, method, path, auth string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestHandler_RequestMagicLink(t *testing.T) {
	f := newHandlerFixture(t)
	f.auth.magicResp = models.MagicLinkResponse{Success: true, Message: "check your inbox"}

	resp := f.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "ana@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.MagicLinkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
}

func TestHandler_RequestMagicLinkBadEmail(t *testing.T) {
	f := newHandlerFixture(t)
	f.auth.magicErr = service.ErrInvalidEmail

	resp := f.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_TraceIDEchoedOnResponses(t *testing.T) {
	f := newHandlerFixture(t)
	f.auth.magicResp = models.MagicLinkResponse{Success: true}

	// a caller-supplied id comes back unchanged
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/auth/magic-link",
		bytes.NewReader([]byte(`{"email":"ana@example.com"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(traceIDHeader, "device-trace-42")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, "device-trace-42", resp.Header.Get(traceIDHeader))

	// without one the server mints an id
	resp = f.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "ana@example.com"})
	assert.NotEmpty(t, resp.Header.Get(traceIDHeader))
}

func TestHandler_Verify(t *testing.T) {
	f := newHandlerFixture(t)
	f.auth.session = models.Session{Token: "jwt", UserID: 7, Email: "ana@example.com"}

	resp := f.do(t, http.MethodPost, "/api/auth/verify", "", models.VerifyRequest{Token: "magic"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.VerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	require.NotNil(t, out.Session)
	assert.Equal(t, int64(7), out.Session.UserID)
}

func TestHandler_VerifyRejected(t *testing.T) {
	f := newHandlerFixture(t)
	f.auth.verifyErr = service.ErrMagicLinkInvalid

	resp := f.do(t, http.MethodPost, "/api/auth/verify", "", models.VerifyRequest{Token: "stale"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var out models.VerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

func TestHandler_AuthMiddleware(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("MissingHeader", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/auth/validate", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("MalformedToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/auth/validate", "Bearer not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WrongSigningKey", func(t *testing.T) {
		token, err := utils.GenerateSessionToken(f.cfg.TokenIssuer, 1, "sess-1", time.Hour, "some_other_key")
		require.NoError(t, err)
		resp := f.do(t, http.MethodGet, "/api/auth/validate", "Bearer "+token.SignedString, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("RevokedSession", func(t *testing.T) {
		f.auth.validateOK = false
		defer func() { f.auth.validateOK = true }()
		resp := f.do(t, http.MethodGet, "/api/auth/validate", f.bearer(t, 1, "sess-1"), nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ValidToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/auth/validate", f.bearer(t, 1, "sess-1"), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHandler_LogoutRevokesSession(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/logout", f.bearer(t, 1, "sess-42"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"sess-42"}, f.auth.revoked)
}

func TestHandler_PullResolvesUserFromToken(t *testing.T) {
	f := newHandlerFixture(t)
	f.sync.pullResp = models.PullResponse{Success: true, Version: 5}

	resp := f.do(t, http.MethodPost, "/api/sync/pull", f.bearer(t, 42, "sess-1"), models.PullRequest{SinceVersion: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(42), f.sync.lastUserID)

	var out models.PullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(5), out.Version)
}

func TestHandler_PushReportsConflictsInBand(t *testing.T) {
	f := newHandlerFixture(t)
	f.sync.pushResp = models.PushResponse{Success: true, Version: 6, ConflictIDs: []string{"item-1"}}

	resp := f.do(t, http.MethodPost, "/api/sync/push", f.bearer(t, 42, "sess-1"), models.PushRequest{LastSyncVersion: 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"item-1"}, out.ConflictIDs)
}

func TestHandler_PresignMapsValidationErrors(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "TooLarge", err: service.ErrImageTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "BadType", err: service.ErrUnsupportedImageType, want: http.StatusUnsupportedMediaType},
		{name: "BadDigest", err: service.ErrInvalidDigest, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.images.presignErr = tt.err
			resp := f.do(t, http.MethodPost, "/api/images/presign-upload", f.bearer(t, 1, "sess-1"), models.PresignUploadRequest{})
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandler_UploadDigestMismatch(t *testing.T) {
	f := newHandlerFixture(t)
	f.images.saveErr = service.ErrHashMismatch

	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/api/images/upload/"+strings.Repeat("a", 64), bytes.NewReader([]byte("bytes")))
	require.NoError(t, err)
	req.Header.Set("Authorization", f.bearer(t, 1, "sess-1"))
	req.Header.Set("Content-Type", "image/png")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "digest mismatch")
}

func TestHandler_DownloadImage(t *testing.T) {
	f := newHandlerFixture(t)
	hash := strings.Repeat("b", 64)
	f.images.loadBody = []byte("image bytes")
	f.images.loadRef = models.ImageRef{Hash: hash, ContentType: "image/png", Size: 11}

	resp := f.do(t, http.MethodGet, "/api/images/"+hash, f.bearer(t, 1, "sess-1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `"`+hash+`"`, resp.Header.Get("ETag"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), body)
}

func TestHandler_DownloadImageNotModified(t *testing.T) {
	f := newHandlerFixture(t)
	hash := strings.Repeat("c", 64)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/images/"+hash, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", f.bearer(t, 1, "sess-1"))
	req.Header.Set("If-None-Match", `"`+hash+`"`)

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestHandler_DownloadImageNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	f.images.loadErr = service.ErrImageNotFound

	resp := f.do(t, http.MethodGet, "/api/images/"+strings.Repeat("d", 64), f.bearer(t, 1, "sess-1"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_CheckImage(t *testing.T) {
	f := newHandlerFixture(t)
	f.images.exists = true

	resp := f.do(t, http.MethodGet, "/api/images/check/"+strings.Repeat("e", 64), f.bearer(t, 1, "sess-1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.CheckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Exists)
}
