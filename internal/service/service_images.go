// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

type imageService struct {
	images store.ImageRepository
	blobs  store.BlobStorage
	logger *logger.Logger
}

// NewImageService constructs the server [ImageService].
func NewImageService(images store.ImageRepository, blobs store.BlobStorage, logger *logger.Logger) ImageService {
	return &imageService{
		images: images,
		blobs:  blobs,
		logger: logger,
	}
}

// validateAnnouncement applies the authoritative size, type and digest
// checks shared by Presign and Save.
func validateAnnouncement(hash string, contentType string, size int64) error {
	if !utils.ValidDigest(hash) {
		return ErrInvalidDigest
	}
	if size > models.MaxImageSize {
		return ErrImageTooLarge
	}
	if !models.ValidImageType(contentType) {
		return ErrUnsupportedImageType
	}
	return nil
}

// Presign validates the announced image and short-circuits with
// AlreadyExists when the digest is stored, so identical bytes are never
// transferred twice regardless of which account uploaded them first.
func (i *imageService) Presign(ctx context.Context, userID int64, req models.PresignUploadRequest) (models.PresignUploadResponse, error) {
	log := logger.FromContext(ctx)

	if err := validateAnnouncement(req.Hash, req.ContentType, req.Size); err != nil {
		return models.PresignUploadResponse{}, err
	}

	exists, err := i.images.ImageExists(ctx, req.Hash)
	if err != nil {
		return models.PresignUploadResponse{}, fmt.Errorf("check image: %w", err)
	}

	if exists {
		ref, refErr := i.images.GetImage(ctx, req.Hash)
		if refErr != nil {
			return models.PresignUploadResponse{}, fmt.Errorf("load image ref: %w", refErr)
		}
		log.Debug().
			Str("func", "imageService.Presign").
			Int64("user_id", userID).
			Str("hash", req.Hash).
			Msg("image already stored, skipping transfer")
		return models.PresignUploadResponse{Success: true, AlreadyExists: true, ImageRef: &ref}, nil
	}

	return models.PresignUploadResponse{
		Success:   true,
		UploadURL: "/api/images/upload/" + req.Hash,
	}, nil
}

// Save recomputes the digest from the received bytes and rejects the upload
// on mismatch, then persists blob and metadata. Blob bytes go first so a
// metadata row never points at a missing file.
func (i *imageService) Save(ctx context.Context, hash string, contentType string, body []byte) (models.ImageRef, error) {
	log := logger.FromContext(ctx)

	if err := validateAnnouncement(hash, contentType, int64(len(body))); err != nil {
		return models.ImageRef{}, err
	}

	if computed := utils.ContentDigest(body); computed != hash {
		log.Warn().
			Str("func", "imageService.Save").
			Str("announced", hash).
			Str("computed", computed).
			Msg("upload digest mismatch")
		return models.ImageRef{}, ErrHashMismatch
	}

	ref := models.ImageRef{Hash: hash, ContentType: contentType, Size: int64(len(body))}

	if err := i.blobs.Save(hash, body); err != nil {
		return models.ImageRef{}, fmt.Errorf("save blob: %w", err)
	}
	if err := i.images.SaveImage(ctx, ref); err != nil {
		return models.ImageRef{}, fmt.Errorf("save image metadata: %w", err)
	}

	log.Info().
		Str("func", "imageService.Save").
		Str("hash", hash).
		Int("size", len(body)).
		Msg("image stored")

	return ref, nil
}

// Load returns blob bytes and descriptor for a digest.
func (i *imageService) Load(ctx context.Context, hash string) ([]byte, models.ImageRef, error) {
	if !utils.ValidDigest(hash) {
		return nil, models.ImageRef{}, ErrImageNotFound
	}

	ref, err := i.images.GetImage(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrImageNotFound) {
			return nil, models.ImageRef{}, ErrImageNotFound
		}
		return nil, models.ImageRef{}, fmt.Errorf("load image metadata: %w", err)
	}

	body, err := i.blobs.Load(hash)
	if err != nil {
		if errors.Is(err, store.ErrImageNotFound) {
			return nil, models.ImageRef{}, ErrImageNotFound
		}
		return nil, models.ImageRef{}, fmt.Errorf("load blob: %w", err)
	}

	return body, ref, nil
}

// Check reports whether a digest is stored.
func (i *imageService) Check(ctx context.Context, hash string) (bool, error) {
	if !utils.ValidDigest(hash) {
		return false, nil
	}

	return i.images.ImageExists(ctx, hash)
}
