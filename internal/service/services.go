package service

import (
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/store"
)

// Services bundles the server-side services for handler wiring.
type Services struct {
	Auth   AuthService
	Sync   SyncService
	Images ImageService
}

// NewServices constructs every server service on top of the given storages.
func NewServices(storages *store.Storages, cfg *config.StructuredConfig, logger *logger.Logger) *Services {
	return &Services{
		Auth:   NewAuthService(storages.Accounts, cfg.Auth, logger),
		Sync:   NewSyncService(storages.Accounts, storages.Records, storages.Images, logger),
		Images: NewImageService(storages.Images, storages.Blobs, logger),
	}
}
