package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

func (h *Handler) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req models.MagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	resp, err := h.services.Auth.RequestMagicLink(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			log.Err(err).Msg("invalid email address")
			http.Error(w, "invalid email address", http.StatusBadRequest)
			return
		default:
			log.Err(err).Msg("unexpected error occurred issuing magic link")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	session, err := h.services.Auth.Verify(ctx, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMagicLinkInvalid):
			log.Err(err).Msg("magic link rejected")
			utils.WriteJSON(w, models.VerifyResponse{Error: "invalid or expired sign-in link"}, http.StatusUnauthorized)
			return
		default:
			log.Err(err).Msg("unexpected error occurred during verification")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	log.Info().Int64("user_id", session.UserID).Msg("session opened")

	utils.WriteJSON(w, models.VerifyResponse{Success: true, Session: &session}, http.StatusOK)
}

func (h *Handler) validate(w http.ResponseWriter, _ *http.Request) {
	// withAuth already proved the session; reaching this handler is the answer
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	sessionID, found := utils.GetSessionIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.logout").Msg("no session ID was given")
		http.Error(w, "no session ID was given", http.StatusBadRequest)
		return
	}

	if err := h.services.Auth.Logout(ctx, sessionID); err != nil {
		log.Err(err).Msg("error revoking session")
		http.Error(w, "error revoking session", statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}
