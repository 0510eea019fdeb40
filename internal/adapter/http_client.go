// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/packsync-app/packsync/models"
)

// HTTPClientConfig carries the settings of the HTTP transport.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type httpServerAdapter struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPServerAdapter constructs the HTTP/JSON implementation of
// [ServerAdapter].
func NewHTTPServerAdapter(cfg HTTPClientConfig) ServerAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpServerAdapter{client: cli}
}

func (h *httpServerAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpServerAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpServerAdapter) RequestMagicLink(ctx context.Context, email string) (models.MagicLinkResponse, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.MagicLinkRequest{Email: email}).
		Post("/api/auth/magic-link")
	if err != nil {
		return models.MagicLinkResponse{}, fmt.Errorf("magic link request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.MagicLinkResponse{}, err
	}

	var out models.MagicLinkResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.MagicLinkResponse{}, fmt.Errorf("decode magic link response: %w", err)
	}

	return out, nil
}

func (h *httpServerAdapter) Verify(ctx context.Context, token string) (models.Session, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.VerifyRequest{Token: token}).
		Post("/api/auth/verify")
	if err != nil {
		return models.Session{}, fmt.Errorf("verify request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Session{}, err
	}

	var out models.VerifyResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.Session{}, fmt.Errorf("decode verify response: %w", err)
	}
	if !out.Success || out.Session == nil {
		if out.Error == "" {
			out.Error = "verification failed"
		}
		return models.Session{}, errors.New(out.Error)
	}

	h.SetToken(out.Session.Token)
	return *out.Session, nil
}

func (h *httpServerAdapter) Validate(ctx context.Context) error {
	resp, err := h.authedRequest(ctx).Get("/api/auth/validate")
	if err != nil {
		return fmt.Errorf("validate request: %w", err)
	}

	return mapHTTPError(resp)
}

func (h *httpServerAdapter) Logout(ctx context.Context) error {
	resp, err := h.authedRequest(ctx).Post("/api/auth/logout")
	h.SetToken("")
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}

	return mapHTTPError(resp)
}

func (h *httpServerAdapter) Pull(ctx context.Context, req models.PullRequest) (models.PullResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/api/sync/pull")
	if err != nil {
		return models.PullResponse{}, fmt.Errorf("pull request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PullResponse{}, err
	}

	var out models.PullResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.PullResponse{}, fmt.Errorf("decode pull response: %w", err)
	}
	if !out.Success {
		return models.PullResponse{}, fmt.Errorf("pull rejected: %s", out.Error)
	}

	return out, nil
}

func (h *httpServerAdapter) Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/api/sync/push")
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("push request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PushResponse{}, err
	}

	var out models.PushResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.PushResponse{}, fmt.Errorf("decode push response: %w", err)
	}
	if !out.Success {
		return models.PushResponse{}, fmt.Errorf("push rejected: %s", out.Error)
	}

	return out, nil
}

func (h *httpServerAdapter) PresignUpload(ctx context.Context, req models.PresignUploadRequest) (models.PresignUploadResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/api/images/presign-upload")
	if err != nil {
		return models.PresignUploadResponse{}, fmt.Errorf("presign request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PresignUploadResponse{}, err
	}

	var out models.PresignUploadResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.PresignUploadResponse{}, fmt.Errorf("decode presign response: %w", err)
	}
	if !out.Success {
		return models.PresignUploadResponse{}, fmt.Errorf("presign rejected: %s", out.Error)
	}

	return out, nil
}

func (h *httpServerAdapter) UploadImage(ctx context.Context, hash string, contentType string, body []byte) (models.ImageRef, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Put("/api/images/upload/" + hash)
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("upload image request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ImageRef{}, err
	}

	var out models.UploadResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return models.ImageRef{}, fmt.Errorf("decode upload response: %w", err)
	}
	if !out.Success || out.ImageRef == nil {
		return models.ImageRef{}, fmt.Errorf("upload rejected: %s", out.Error)
	}

	return *out.ImageRef, nil
}

func (h *httpServerAdapter) DownloadImage(ctx context.Context, hash string) ([]byte, string, error) {
	resp, err := h.authedRequest(ctx).Get("/api/images/" + hash)
	if err != nil {
		return nil, "", fmt.Errorf("download image request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, "", err
	}

	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (h *httpServerAdapter) CheckImage(ctx context.Context, hash string) (bool, error) {
	resp, err := h.authedRequest(ctx).Get("/api/images/check/" + hash)
	if err != nil {
		return false, fmt.Errorf("check image request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return false, err
	}

	var out models.CheckResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return false, fmt.Errorf("decode check response: %w", err)
	}

	return out.Exists, nil
}

func (h *httpServerAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	case http.StatusUnsupportedMediaType:
		return ErrUnsupportedMedia
	}

	body := strings.TrimSpace(string(resp.Body()))
	if resp.StatusCode() == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "digest mismatch") {
		return ErrHashMismatch
	}
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}
