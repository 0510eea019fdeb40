package service

import "errors"

var (
	// ErrInvalidEmail is returned when a magic link is requested for a
	// syntactically invalid address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrMagicLinkInvalid is returned when a verification token is unknown,
	// expired or already consumed.
	ErrMagicLinkInvalid = errors.New("magic link is invalid or expired")

	// ErrInvalidDigest is returned when an image hash is not a 64-character
	// hex SHA-256 digest.
	ErrInvalidDigest = errors.New("invalid content digest")

	// ErrHashMismatch is returned when the digest recomputed from uploaded
	// bytes differs from the announced one.
	ErrHashMismatch = errors.New("content digest mismatch")

	// ErrImageTooLarge is returned when an image blob exceeds
	// [models.MaxImageSize].
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrUnsupportedImageType is returned when an image content type is
	// outside the allowed set.
	ErrUnsupportedImageType = errors.New("unsupported image content type")

	// ErrImageNotFound is returned when a digest is unknown to the store.
	ErrImageNotFound = errors.New("image was not found")

	// ErrSyncInProgress is returned when a sync cycle is requested while a
	// previous one is still running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNotSignedIn is returned by client operations that need a session
	// when the device has none.
	ErrNotSignedIn = errors.New("not signed in")
)
