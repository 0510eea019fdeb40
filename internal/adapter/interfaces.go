// SPDX-License-Identifier: Apache-2.0

// Package adapter provides transport-layer abstractions for communicating
// with the packsync server.
//
// The primary abstraction is [ServerAdapter], which decouples the client
// engine from the underlying protocol. The package ships an HTTP/JSON
// implementation ([NewHTTPServerAdapter]) built on resty.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrUnauthorized] for 401, [ErrNotFound] for 404).
package adapter

import (
	"context"

	"github.com/packsync-app/packsync/models"
)

// ServerAdapter defines transport-agnostic communication with the sync
// server. Implementations are responsible for serialisation, bearer-token
// management, and mapping transport-level errors to the sentinel values
// defined in this package.
type ServerAdapter interface {
	// SetToken stores the bearer token attached to all subsequent
	// authenticated requests. Called after a successful Verify or when the
	// engine restores a persisted session.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// RequestMagicLink asks the server to send a single-use sign-in link to
	// the given address. The server answers success regardless of whether
	// the address has an account, so existence is never leaked.
	RequestMagicLink(ctx context.Context, email string) (models.MagicLinkResponse, error)

	// Verify exchanges a magic-link token for a session. On success the
	// session token is stored via SetToken.
	Verify(ctx context.Context, token string) (models.Session, error)

	// Validate checks the stored session against the server. Returns nil
	// when the session is accepted and [ErrUnauthorized] when it is not.
	Validate(ctx context.Context) error

	// Logout invalidates the session server-side. The stored token is
	// cleared even when the request fails; local sign-out never depends on
	// server availability.
	Logout(ctx context.Context) error

	// Pull fetches the remote delta since the client's version cursor.
	Pull(ctx context.Context, req models.PullRequest) (models.PullResponse, error)

	// Push uploads the ordered outbox content. Conflicts are reported
	// in-band via the response, not as errors.
	Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error)

	// PresignUpload announces an image digest. When the server already
	// stores the digest the response short-circuits with AlreadyExists and
	// no byte transfer happens.
	PresignUpload(ctx context.Context, req models.PresignUploadRequest) (models.PresignUploadResponse, error)

	// UploadImage transfers raw image bytes. The server recomputes the
	// digest and rejects the upload on mismatch with [ErrHashMismatch].
	UploadImage(ctx context.Context, hash string, contentType string, body []byte) (models.ImageRef, error)

	// DownloadImage fetches raw image bytes and their content type.
	// Returns [ErrNotFound] when no device ever uploaded the digest.
	DownloadImage(ctx context.Context, hash string) ([]byte, string, error)

	// CheckImage reports whether the server stores the digest.
	CheckImage(ctx context.Context, hash string) (bool, error)
}
