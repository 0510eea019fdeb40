package client

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/models"
)

type App struct {
	services *service.ClientServices

	logger *logger.Logger
}

func NewApp(services *service.ClientServices, logger *logger.Logger) *App {
	return &App{services: services, logger: logger}
}

// Run brings the engine up and blocks until a stop signal arrives.
//
// A device that has never signed in still runs: local edits accumulate in
// the outbox and every cycle reports that authentication is required, so the
// first sign-in flushes the backlog.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()
	ctx = a.logger.WithContext(ctx)

	restored, err := a.services.Auth.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	if restored {
		if err = a.services.Auth.Validate(ctx); err != nil {
			if !errors.Is(err, adapter.ErrUnauthorized) {
				// probably offline; the stored session stays and sync
				// retries on its own schedule
				a.logger.Warn().Err(err).Msg("session validation failed, continuing offline")
			} else {
				a.logger.Warn().Msg("stored session rejected, sign in again")
			}
		}
	} else {
		a.logger.Info().Msg("no stored session, engine starts signed out")
	}

	unsubscribe := a.services.Orchestrator.Subscribe(a.logEvent)
	defer unsubscribe()

	if err = a.services.Orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer a.services.Orchestrator.Stop()

	if restored {
		a.services.Orchestrator.Sync(ctx)
	}

	<-ctx.Done()
	a.logger.Info().Msg("engine shutting down")

	return nil
}

// logEvent mirrors the orchestrator's event stream into the log, which is
// the headless runtime's only user interface.
func (a *App) logEvent(event models.SyncEvent) {
	switch event.Type {
	case models.EventSyncStarted:
		a.logger.Info().Msg("sync started")
	case models.EventSyncProgress:
		a.logger.Debug().
			Str("stage", event.Stage).
			Str("message", event.Message).
			Msg("sync progress")
	case models.EventSyncCompleted:
		log := a.logger.Info()
		if event.Result != nil {
			log = log.
				Int("pulled", event.Result.Pulled).
				Int("pushed", event.Result.Pushed).
				Int("conflicts", event.Result.Conflicts).
				Int("images_up", event.Result.ImagesUploaded).
				Int("images_down", event.Result.ImagesDownloaded).
				Int("images_failed", event.Result.ImagesFailed)
		}
		log.Msg("sync completed")
	case models.EventSyncError:
		a.logger.Error().Str("message", event.Message).Msg("sync failed")
	case models.EventAuthRequired:
		a.logger.Warn().Str("message", event.Message).Msg("authentication required")
	}
}
