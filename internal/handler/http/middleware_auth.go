package http

import (
	"context"
	"net/http"

	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/utils"
)

// withAuth is an HTTP middleware that enforces session-token authentication.
//
// It inspects the incoming "Authorization" header, extracts the bearer token,
// verifies the JWT signature and issuer, and checks that the session it names
// is still on record (so server-side logout revokes tokens before they
// expire). On success the account and session identifiers are stored in the
// request context under [utils.UserIDCtxKey] and [utils.SessionIDCtxKey]
// before delegating to the next handler.
//
// Every rejection answers HTTP 401 Unauthorized and is logged using the
// context-scoped logger obtained via [logger.FromRequest].
func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Err(ErrEmptyAuthorizationHeader).Send()
			http.Error(w, ErrEmptyAuthorizationHeader.Error(), http.StatusUnauthorized)
			return
		}

		tokenString, err := utils.ParseBearerToken(authHeader)
		if err != nil {
			log.Err(err).Send()
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		token, err := utils.ValidateAndParseSessionToken(tokenString, h.auth.TokenSignKey, h.auth.TokenIssuer)
		if err != nil {
			log.Err(err).Msg("session token rejected")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := r.Context()

		live, err := h.services.Auth.Validate(ctx, token.SessionID)
		if err != nil {
			log.Err(err).Msg("session lookup failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !live {
			log.Warn().Str("session_id", token.SessionID).Msg("session revoked or expired")
			http.Error(w, ErrSessionRevoked.Error(), http.StatusUnauthorized)
			return
		}

		// Store identity in the context so downstream handlers can retrieve
		// it without re-parsing the token.
		ctx = context.WithValue(ctx, utils.UserIDCtxKey, token.UserID)
		ctx = context.WithValue(ctx, utils.SessionIDCtxKey, token.SessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
