package models

import "time"

// MagicLinkRequest starts the passwordless sign-in flow.
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// MagicLinkResponse acknowledges that a sign-in link was issued.
type MagicLinkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VerifyRequest exchanges a magic-link token for a session.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse carries the established session on success.
type VerifyResponse struct {
	Success bool     `json:"success"`
	Session *Session `json:"session,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Session is the authenticated identity returned by /auth/verify. The client
// persists it in SyncMeta and attaches Token as a bearer credential to every
// sync and image request.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PresignUploadRequest announces an image the client wants to store remotely.
// The server answers with a dedup short-circuit when the digest is already
// known, so identical bytes are never transferred twice.
type PresignUploadRequest struct {
	Hash        string `json:"hash"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// PresignUploadResponse either confirms the blob already exists or hands out
// the upload location for the raw PUT.
type PresignUploadResponse struct {
	Success       bool      `json:"success"`
	AlreadyExists bool      `json:"alreadyExists"`
	UploadURL     string    `json:"uploadUrl,omitempty"`
	ImageRef      *ImageRef `json:"imageRef,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// UploadResponse confirms an accepted raw upload. The server recomputes the
// digest from the received bytes and rejects the upload on mismatch before
// this response is ever produced.
type UploadResponse struct {
	Success  bool      `json:"success"`
	ImageRef *ImageRef `json:"imageRef,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// CheckResponse answers a remote-presence probe for a digest.
type CheckResponse struct {
	Exists bool `json:"exists"`
}
