package main

import (
	"context"
	"fmt"

	"github.com/packsync-app/packsync/internal/adapter"
	"github.com/packsync-app/packsync/internal/client"
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/store"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewClientLogger("packsync-client")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx := log.WithContext(context.Background())

	serverAdapter := adapter.NewHTTPServerAdapter(adapter.HTTPClientConfig{
		BaseURL: cfg.Adapter.BaseURL,
		Timeout: cfg.Adapter.RequestTimeout,
	})

	localStorage, err := store.NewClientStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}

	services := service.NewClientServices(localStorage, serverAdapter, cfg, log)

	app := client.NewApp(services, log)
	if err = app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("client run error")
	}
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
