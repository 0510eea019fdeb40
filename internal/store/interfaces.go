package store

import (
	"context"
	"time"

	"github.com/packsync-app/packsync/models"
)

// AccountRepository manages accounts, magic links and sessions on the
// server side.
type AccountRepository interface {
	// CreateMagicLink stores a fresh single-use sign-in token for email.
	CreateMagicLink(ctx context.Context, token string, email string, expiresAt time.Time) error

	// ConsumeMagicLink atomically marks a token as used and returns the
	// email it was issued for. Returns [ErrMagicLinkInvalid] when the token
	// is unknown, expired or already consumed.
	ConsumeMagicLink(ctx context.Context, token string) (string, error)

	// CreateOrGetAccount returns the account for email, creating it on
	// first sign-in.
	CreateOrGetAccount(ctx context.Context, email string) (models.Account, error)

	// GetAccount returns the account by id, or [ErrAccountNotFound].
	GetAccount(ctx context.Context, userID int64) (models.Account, error)

	// CreateSession records an issued session so tokens can be revoked
	// server-side.
	CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error

	// SessionExists reports whether a non-expired session with the id is
	// on record.
	SessionExists(ctx context.Context, sessionID string) (bool, error)

	// DeleteSession revokes a session. Revoking an unknown session succeeds.
	DeleteSession(ctx context.Context, sessionID string) error

	// PurgeExpired removes expired sessions and magic links.
	PurgeExpired(ctx context.Context, now time.Time) error
}

// RecordRepository stores the authoritative copy of every synchronized row
// and implements the two halves of the sync protocol: delta reads for pull
// and ordered conflict-checked writes for push.
type RecordRepository interface {
	// Delta returns all rows of the account whose row_version is greater
	// than sinceVersion, grouped per table into upserts and deletes.
	Delta(ctx context.Context, userID int64, sinceVersion int64) (map[string]models.TableChanges, error)

	// ApplyPush applies a batch of client changes in order inside one
	// transaction. A change loses to the stored row (and its record id is
	// reported as a conflict) when the stored updated_at is strictly newer
	// than the change timestamp. The account version is bumped once when at
	// least one change applies; the returned version is the account version
	// after the call.
	ApplyPush(ctx context.Context, userID int64, changes []models.LocalChange) (int64, []string, error)
}

// ImageRepository stores image metadata and the per-record reference index
// used for deduplication and orphan collection.
type ImageRepository interface {
	// SaveImage records an image descriptor. Saving an already known hash
	// is a no-op.
	SaveImage(ctx context.Context, ref models.ImageRef) error

	// GetImage returns the descriptor for a hash, or [ErrImageNotFound].
	GetImage(ctx context.Context, hash string) (models.ImageRef, error)

	// ImageExists reports whether a hash is already stored.
	ImageExists(ctx context.Context, hash string) (bool, error)

	// ReplaceRefs rewrites the set of image hashes referenced by one record.
	ReplaceRefs(ctx context.Context, userID int64, table string, recordID string, hashes []string) error

	// Orphans returns hashes of images older than olderThan that no record
	// references any more.
	Orphans(ctx context.Context, olderThan time.Time) ([]string, error)

	// DeleteImage removes the metadata row for a hash. Unknown hashes
	// succeed silently.
	DeleteImage(ctx context.Context, hash string) error
}

// BlobStorage persists raw image bytes outside the database, keyed by
// content digest.
type BlobStorage interface {
	Save(hash string, body []byte) error
	Load(hash string) ([]byte, error)
	Exists(hash string) (bool, error)
	Remove(hash string) error
}
