// Package main implements the entry point for the CallScribe API server,
// which manages users' call records and runs their transcriptions through
// a background worker pool.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/voxlog/callscribe-api/internal/config"
	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/platform/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// run loads configuration, wires the application and serves until shutdown.
// Split out of main so initialization failures surface as errors rather than
// direct os.Exit calls.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if err := postgres.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
