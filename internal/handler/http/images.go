package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

func (h *Handler) presignUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.presignUpload").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusBadRequest)
		return
	}

	var req models.PresignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Str("func", "*Handler.presignUpload").Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	resp, err := h.services.Images.Presign(ctx, userID, req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.presignUpload").Msg("announcement rejected")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	hash := chi.URLParam(r, "hash")
	contentType := r.Header.Get("Content-Type")

	// one byte over the limit is enough to tell the blob is oversized
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, models.MaxImageSize+1))
	if err != nil {
		log.Err(err).Str("func", "*Handler.uploadImage").Msg("error reading upload body")
		http.Error(w, "error reading upload body", http.StatusRequestEntityTooLarge)
		return
	}

	ref, err := h.services.Images.Save(ctx, hash, contentType, body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHashMismatch):
			log.Warn().Str("func", "*Handler.uploadImage").Str("hash", hash).Msg("upload rejected, digest mismatch")
			http.Error(w, "content digest mismatch", http.StatusBadRequest)
			return
		default:
			log.Err(err).Str("func", "*Handler.uploadImage").Msg("error storing image")
			http.Error(w, err.Error(), statusFromError(err))
			return
		}
	}

	utils.WriteJSON(w, models.UploadResponse{Success: true, ImageRef: &ref}, http.StatusOK)
}

func (h *Handler) downloadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	hash := chi.URLParam(r, "hash")
	etag := `"` + hash + `"`

	// blobs are content-addressed, so a cached copy can never go stale
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, ref, err := h.services.Images.Load(ctx, hash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			http.Error(w, "image not found", http.StatusNotFound)
			return
		default:
			log.Err(err).Str("func", "*Handler.downloadImage").Msg("error loading image")
			http.Error(w, "error loading image", statusFromError(err))
			return
		}
	}

	w.Header().Set("Content-Type", ref.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err = w.Write(body); err != nil {
		log.Err(err).Str("func", "*Handler.downloadImage").Msg("error writing image body")
	}
}

func (h *Handler) checkImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	exists, err := h.services.Images.Check(ctx, chi.URLParam(r, "hash"))
	if err != nil {
		log.Err(err).Str("func", "*Handler.checkImage").Msg("error checking image")
		http.Error(w, "error checking image", statusFromError(err))
		return
	}

	utils.WriteJSON(w, models.CheckResponse{Exists: exists}, http.StatusOK)
}
