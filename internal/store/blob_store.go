package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/utils"
)

// fileBlobStorage is the filesystem implementation of [BlobStorage]. Bytes
// live under root/<hash[:2]>/<hash> so no single directory accumulates every
// image. Writes go through a temp file plus rename, which keeps a crashed
// upload from leaving a half-written blob under its final name.
type fileBlobStorage struct {
	root   string
	logger *logger.Logger
}

// NewFileBlobStorage creates the blob root directory if needed and returns
// the storage.
func NewFileBlobStorage(root string, log *logger.Logger) (BlobStorage, error) {
	if root == "" {
		return nil, errors.New("blob storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		log.Err(err).Str("func", "NewFileBlobStorage").Str("root", root).Msg("failed to create blob root")
		return nil, fmt.Errorf("create blob root: %w", err)
	}

	return &fileBlobStorage{root: root, logger: log}, nil
}

func (f *fileBlobStorage) path(hash string) string {
	return filepath.Join(f.root, hash[:2], hash)
}

// Save writes a blob under its content digest. Saving an existing hash
// rewrites identical bytes, so concurrent saves of the same image are safe.
func (f *fileBlobStorage) Save(hash string, body []byte) error {
	if !utils.ValidDigest(hash) {
		return fmt.Errorf("invalid content digest %q", hash)
	}

	dir := filepath.Dir(f.path(hash))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("create blob temp file: %w", err)
	}

	if _, err = tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close blob temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), f.path(hash)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish blob: %w", err)
	}

	return nil
}

// Load returns the blob bytes for a hash, or [ErrImageNotFound].
func (f *fileBlobStorage) Load(hash string) ([]byte, error) {
	if !utils.ValidDigest(hash) {
		return nil, ErrImageNotFound
	}

	body, err := os.ReadFile(f.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	return body, nil
}

// Exists reports whether a blob is present on disk.
func (f *fileBlobStorage) Exists(hash string) (bool, error) {
	if !utils.ValidDigest(hash) {
		return false, nil
	}

	if _, err := os.Stat(f.path(hash)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}

	return true, nil
}

// Remove deletes a blob. Removing a missing blob succeeds.
func (f *fileBlobStorage) Remove(hash string) error {
	if !utils.ValidDigest(hash) {
		return nil
	}

	if err := os.Remove(f.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}

	return nil
}
