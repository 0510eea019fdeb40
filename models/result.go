package models

import "time"

// SyncResult is the summary returned by one full sync cycle.
type SyncResult struct {
	// Pulled is the number of remote changes applied locally
	// (upserts plus deletes across all tables).
	Pulled int `json:"pulled"`

	// Pushed is the number of outbox entries flushed to the remote store.
	Pushed int `json:"pushed"`

	// ImagesUploaded and ImagesDownloaded count blob transfers performed by
	// the image reconciliation stage. ImagesFailed counts images the stage
	// rejected and left behind.
	ImagesUploaded   int `json:"imagesUploaded"`
	ImagesDownloaded int `json:"imagesDownloaded"`
	ImagesFailed     int `json:"imagesFailed,omitempty"`

	// Conflicts is the number of record ids where the remote copy won.
	Conflicts int `json:"conflicts"`

	// Duration is the wall-clock length of the cycle.
	Duration time.Duration `json:"duration"`

	// Error is the human-readable failure description, empty on success.
	Error string `json:"error,omitempty"`
}
