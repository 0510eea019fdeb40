// SPDX-License-Identifier: Apache-2.0

// Package service holds the business logic of both sides of the sync engine.
//
// Server-side services (interfaces.go, service_*.go) sit between the HTTP
// handlers and the PostgreSQL store: passwordless authentication, the
// pull/push protocol core and content-addressed image storage.
//
// Client-side services (client_interfaces.go, client_service_*.go) form the
// local-first engine: change tracking into the outbox, the sync cycle state
// machine, image transfer and the orchestrator with its event bus.
package service

import (
	"context"

	"github.com/packsync-app/packsync/models"
)

// AuthService implements passwordless magic-link authentication and session
// lifecycle on the server.
type AuthService interface {
	// RequestMagicLink issues a single-use sign-in token for email. The
	// token is delivered out-of-band; the returned response never reveals
	// whether the address has an account.
	RequestMagicLink(ctx context.Context, email string) (models.MagicLinkResponse, error)

	// Verify consumes a magic-link token, creating the account on first
	// sign-in, and returns a session with a signed bearer token.
	Verify(ctx context.Context, token string) (models.Session, error)

	// Validate reports whether the session id is live and unrevoked.
	Validate(ctx context.Context, sessionID string) (bool, error)

	// Logout revokes the session id. Revoking an unknown session succeeds.
	Logout(ctx context.Context, sessionID string) error
}

// SyncService implements the server half of the sync protocol.
type SyncService interface {
	// Pull returns the delta since the client's version cursor together
	// with the account's current version.
	Pull(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error)

	// Push applies the client's ordered change batch, resolving write
	// conflicts by timestamp, and reports the losing record ids in-band.
	Push(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error)
}

// ImageService implements content-addressed image storage on the server.
type ImageService interface {
	// Presign validates an announced image and answers with a dedup
	// short-circuit when the digest is already stored.
	Presign(ctx context.Context, userID int64, req models.PresignUploadRequest) (models.PresignUploadResponse, error)

	// Save verifies the uploaded bytes against the announced digest and
	// persists blob and metadata. Saving a digest that already exists is
	// idempotent.
	Save(ctx context.Context, hash string, contentType string, body []byte) (models.ImageRef, error)

	// Load returns the blob bytes and descriptor for a digest, or
	// [ErrImageNotFound].
	Load(ctx context.Context, hash string) ([]byte, models.ImageRef, error)

	// Check reports whether a digest is stored.
	Check(ctx context.Context, hash string) (bool, error)
}
