// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/internal/utils"
	"github.com/packsync-app/packsync/models"
)

type authService struct {
	accounts store.AccountRepository
	uuid     *utils.UUIDGenerator
	cfg      config.Auth
	logger   *logger.Logger
}

// NewAuthService constructs the server [AuthService].
func NewAuthService(accounts store.AccountRepository, cfg config.Auth, logger *logger.Logger) AuthService {
	return &authService{
		accounts: accounts,
		uuid:     utils.NewUUIDGenerator(),
		cfg:      cfg,
		logger:   logger,
	}
}

// RequestMagicLink issues a single-use token for email. The token is written
// to the log in lieu of a mail integration; the response is identical for
// known and unknown addresses so account existence is never leaked.
func (a *authService) RequestMagicLink(ctx context.Context, email string) (models.MagicLinkResponse, error) {
	log := logger.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return models.MagicLinkResponse{}, ErrInvalidEmail
	}

	token := a.uuid.Generate()
	expiresAt := time.Now().Add(a.cfg.MagicLinkTTL)

	if err := a.accounts.CreateMagicLink(ctx, token, email, expiresAt); err != nil {
		return models.MagicLinkResponse{}, fmt.Errorf("store magic link: %w", err)
	}

	// Mail delivery is out of band. The token lands in the server log so an
	// operator (or a dev setup) can complete the flow.
	log.Info().
		Str("func", "authService.RequestMagicLink").
		Str("email", email).
		Str("token", token).
		Time("expires_at", expiresAt).
		Msg("magic link issued")

	return models.MagicLinkResponse{
		Success: true,
		Message: "if the address is reachable, a sign-in link has been sent",
	}, nil
}

// Verify consumes the magic-link token, creates the account on first
// sign-in, opens a session and returns the signed bearer token.
func (a *authService) Verify(ctx context.Context, token string) (models.Session, error) {
	log := logger.FromContext(ctx)

	email, err := a.accounts.ConsumeMagicLink(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, store.ErrMagicLinkInvalid) {
			return models.Session{}, ErrMagicLinkInvalid
		}
		return models.Session{}, fmt.Errorf("consume magic link: %w", err)
	}

	account, err := a.accounts.CreateOrGetAccount(ctx, email)
	if err != nil {
		return models.Session{}, fmt.Errorf("resolve account: %w", err)
	}

	sessionID := a.uuid.Generate()
	expiresAt := time.Now().Add(a.cfg.TokenDuration)

	signed, err := utils.GenerateSessionToken(a.cfg.TokenIssuer, account.UserID, sessionID, a.cfg.TokenDuration, a.cfg.TokenSignKey)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	if err = a.accounts.CreateSession(ctx, sessionID, account.UserID, expiresAt); err != nil {
		return models.Session{}, fmt.Errorf("store session: %w", err)
	}

	log.Info().
		Str("func", "authService.Verify").
		Int64("user_id", account.UserID).
		Msg("session opened")

	return models.Session{
		Token:     signed.SignedString,
		UserID:    account.UserID,
		Username:  account.Username,
		Email:     account.Email,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate reports whether the session id is live. Token signature and
// expiry are checked by the auth middleware before this is consulted.
func (a *authService) Validate(ctx context.Context, sessionID string) (bool, error) {
	return a.accounts.SessionExists(ctx, sessionID)
}

// Logout revokes the session id.
func (a *authService) Logout(ctx context.Context, sessionID string) error {
	return a.accounts.DeleteSession(ctx, sessionID)
}
