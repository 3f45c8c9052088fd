package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxlog/callscribe-api/internal/config"
	"github.com/voxlog/callscribe-api/internal/platform/postgres"
	"github.com/voxlog/callscribe-api/internal/service"
	"github.com/voxlog/callscribe-api/internal/service/auth"
	"github.com/voxlog/callscribe-api/internal/store"
	"github.com/voxlog/callscribe-api/internal/transcription"
)

// staticTranscript is the fixed output of the "static" transcriber mode,
// intended for demos and integration tests that need predictable text.
const staticTranscript = "This is a static transcript produced without audio processing."

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore store.UserStore
	callStore store.CallStore
	jobStore  transcription.JobStore

	// Service interfaces
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	callService      service.CallService

	// Background transcription pipeline
	jobQueue   *transcription.JobQueue
	workerPool *transcription.WorkerPool
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordVerifier = auth.NewBcryptVerifier()

	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, logger)
	app.callStore = postgres.NewPostgresCallStore(db, logger)
	app.jobStore = postgres.NewPostgresJobStore(db, logger)

	submitDelay := time.Duration(cfg.Transcription.SubmitDelayMs) * time.Millisecond

	app.jobQueue = transcription.NewJobQueue(app.jobStore, transcription.QueueConfig{
		SubmitDelay:    submitDelay,
		RetryBaseDelay: time.Duration(cfg.Transcription.RetryBaseDelayMs) * time.Millisecond,
		MaxAttempts:    cfg.Transcription.MaxAttempts,
		MaxPending:     cfg.Transcription.QueueSize,
	}, logger)

	transcriber, err := buildTranscriber(cfg.Transcription, app.callStore, logger)
	if err != nil {
		return nil, err
	}

	app.workerPool = transcription.NewWorkerPool(
		app.jobQueue,
		app.callStore,
		transcriber,
		transcription.WorkerPoolConfig{WorkerCount: cfg.Transcription.WorkerCount},
		logger,
	)

	app.callService, err = service.NewCallService(app.callStore, app.jobQueue, submitDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create call service: %w", err)
	}

	// Start requeues jobs persisted by a previous run and reschedules calls
	// whose transcriptions were interrupted mid-flight.
	if err := app.workerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	logger.Info("Transcription worker pool started",
		"worker_count", cfg.Transcription.WorkerCount,
		"mode", cfg.Transcription.Mode)

	logger.Info("Application initialized successfully")
	return app, nil
}

// buildTranscriber selects the Transcriber implementation for the configured
// mode.
func buildTranscriber(
	cfg config.TranscriptionConfig,
	calls store.CallStore,
	logger *slog.Logger,
) (transcription.Transcriber, error) {
	switch cfg.Mode {
	case "mock":
		return transcription.NewMockTranscriber(calls, transcription.MockConfig{
			MinDuration: time.Duration(cfg.Mock.MinDurationMs) * time.Millisecond,
			MaxDuration: time.Duration(cfg.Mock.MaxDurationMs) * time.Millisecond,
			FailureRate: cfg.Mock.FailureRate,
		}, logger), nil
	case "static":
		return transcription.NewStaticTranscriber(staticTranscript), nil
	default:
		return nil, fmt.Errorf("unknown transcription mode %q", cfg.Mode)
	}
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources. The worker
// pool drains in-flight jobs before the queue and database close beneath it.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.jobQueue != nil {
		app.jobQueue.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
