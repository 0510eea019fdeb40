package http

import (
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
)

type Handler struct {
	services *service.Services
	auth     config.Auth

	logger *logger.Logger
}

func NewHandler(services *service.Services, auth config.Auth, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		auth:     auth,
		logger:   logger,
	}
}
