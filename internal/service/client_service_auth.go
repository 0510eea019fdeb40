// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/models"
)

type clientAuthService struct {
	meta          store.MetaRepository
	outbox        store.OutboxRepository
	serverAdapter adapter.ServerAdapter
	logger        *logger.Logger
}

// NewClientAuthService constructs a [ClientAuthService].
func NewClientAuthService(storages *store.ClientStorages, serverAdapter adapter.ServerAdapter, logger *logger.Logger) ClientAuthService {
	return &clientAuthService{
		meta:          storages.Meta,
		outbox:        storages.Outbox,
		serverAdapter: serverAdapter,
		logger:        logger,
	}
}

// RequestMagicLink starts the passwordless flow.
func (c *clientAuthService) RequestMagicLink(ctx context.Context, email string) error {
	if _, err := c.serverAdapter.RequestMagicLink(ctx, email); err != nil {
		return fmt.Errorf("request magic link: %w", err)
	}
	return nil
}

// Verify exchanges the magic-link token for a session and persists it in
// the metadata row with sync enabled.
func (c *clientAuthService) Verify(ctx context.Context, token string) (models.Session, error) {
	log := logger.FromContext(ctx)

	session, err := c.serverAdapter.Verify(ctx, token)
	if err != nil {
		return models.Session{}, fmt.Errorf("verify magic link: %w", err)
	}

	meta := models.SyncMeta{
		UserID:       session.UserID,
		Username:     session.Username,
		Email:        session.Email,
		SessionToken: session.Token,
		SyncEnabled:  true,
	}
	if err = c.meta.Save(ctx, meta); err != nil {
		return models.Session{}, fmt.Errorf("persist session: %w", err)
	}

	log.Info().
		Str("func", "clientAuthService.Verify").
		Int64("user_id", session.UserID).
		Msg("signed in")

	return session, nil
}

// Restore loads the persisted session into the transport.
func (c *clientAuthService) Restore(ctx context.Context) (bool, error) {
	meta, err := c.meta.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrMetaNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}

	c.serverAdapter.SetToken(meta.SessionToken)
	return true, nil
}

// Validate probes the server with the stored session. A 401 clears local
// session state so the engine stops retrying a dead token.
func (c *clientAuthService) Validate(ctx context.Context) error {
	if _, err := c.meta.Get(ctx); err != nil {
		if errors.Is(err, store.ErrMetaNotFound) {
			return ErrNotSignedIn
		}
		return fmt.Errorf("load session: %w", err)
	}

	err := c.serverAdapter.Validate(ctx)
	if errors.Is(err, adapter.ErrUnauthorized) {
		if clearErr := c.ClearLocalSession(ctx); clearErr != nil {
			return clearErr
		}
		return err
	}

	return err
}

// Logout invalidates the session server-side when reachable and always
// destroys local session state. Pending outbox entries are dropped without
// a final flush; a sign-out is an explicit abandonment of unpushed work.
func (c *clientAuthService) Logout(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if err := c.serverAdapter.Logout(ctx); err != nil {
		log.Warn().
			Err(err).
			Str("func", "clientAuthService.Logout").
			Msg("server-side logout failed, clearing local session anyway")
	}

	return c.ClearLocalSession(ctx)
}

// ClearLocalSession drops the metadata row and the outbox.
func (c *clientAuthService) ClearLocalSession(ctx context.Context) error {
	log := logger.FromContext(ctx)

	c.serverAdapter.SetToken("")

	if err := c.outbox.Clear(ctx); err != nil {
		return fmt.Errorf("clear outbox: %w", err)
	}
	if err := c.meta.Clear(ctx); err != nil {
		return fmt.Errorf("clear sync metadata: %w", err)
	}

	log.Info().
		Str("func", "clientAuthService.ClearLocalSession").
		Msg("local session cleared")

	return nil
}
