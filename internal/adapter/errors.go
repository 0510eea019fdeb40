package adapter

import "errors"

var (
	// ErrUnauthorized is returned when the server rejects the session token.
	// The engine reacts by clearing the local session and raising an
	// auth-required event.
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrNotFound is returned when the requested resource, typically an
	// image digest, is unknown to the server.
	ErrNotFound = errors.New("resource not found")

	// ErrHashMismatch is returned when the server recomputes a different
	// digest from the uploaded bytes than the one announced.
	ErrHashMismatch = errors.New("content digest mismatch")

	// ErrPayloadTooLarge is returned when an upload exceeds the server's
	// size ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMedia is returned when the server refuses the uploaded
	// content type.
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
