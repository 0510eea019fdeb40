package http

import (
	"encoding/json"
	"net/http"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

func (h *Handler) pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.pull").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusBadRequest)
		return
	}

	var req models.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Str("func", "*Handler.pull").Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	resp, err := h.services.Sync.Pull(ctx, userID, req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.pull").Msg("error serving pull")
		http.Error(w, "error serving pull", statusFromError(err))
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.push").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusBadRequest)
		return
	}

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Str("func", "*Handler.push").Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	resp, err := h.services.Sync.Push(ctx, userID, req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.push").Msg("error applying push")
		http.Error(w, "error applying push", statusFromError(err))
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}
