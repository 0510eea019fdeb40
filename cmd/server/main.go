package main

import (
	"context"
	"fmt"

	"github.com/packsync-app/packsync/internal/config"
	httpHandler "github.com/packsync-app/packsync/internal/handler/http"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/server"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/store"
	"github.com/packsync-app/packsync/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("packsync-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx := log.WithContext(context.Background())

	storages, err := store.NewStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating storages")
	}

	services := service.NewServices(storages, cfg, log)
	handler := httpHandler.NewHandler(services, cfg.Auth, log)

	srv, err := server.NewServer(handler, cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	janitor := workers.NewJanitor(storages, cfg.Workers, log)
	workers.NewWorkers(janitor).Run()
	defer janitor.Stop()

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
