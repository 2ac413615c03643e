package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaxburden-server/internal/api"
	"github.com/vaxburden-server/internal/config"
	"github.com/vaxburden-server/internal/database"
	"github.com/vaxburden-server/internal/domain"
	"github.com/vaxburden-server/internal/loader"
	"github.com/vaxburden-server/internal/repository"
	"github.com/vaxburden-server/pkg/datasource"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(&cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(ctx, cfg.Database.Path, logger)
	if err != nil {
		log.Fatalf("Failed to open result database: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db.SQL)

	// Prefer the remote table service when configured, otherwise the
	// local CSV directory.
	var tables domain.TableSource
	if cfg.Data.ServiceURL != "" {
		tables = datasource.NewClient(datasource.Config{
			BaseURL:   cfg.Data.ServiceURL,
			Timeout:   cfg.Data.ServiceTimeout,
			RateLimit: cfg.Data.ServiceRate,
			RateBurst: cfg.Data.ServiceBurst,
		}, logger)
	} else {
		tables, err = loader.NewCSVLoader(cfg.Data.Dir, cfg.Data.CacheSize, logger)
		if err != nil {
			log.Fatalf("Failed to create table loader: %v", err)
		}
	}

	server := api.NewServer(cfg, logger, tables, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting burden engine server")
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
