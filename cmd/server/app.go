package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/task-api/internal/config"
	"github.com/phrazzld/task-api/internal/platform/mailer"
	"github.com/phrazzld/task-api/internal/platform/postgres"
	"github.com/phrazzld/task-api/internal/reminder"
	"github.com/phrazzld/task-api/internal/service/auth"
	"github.com/phrazzld/task-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	taskStore store.TaskStore

	passwordCodec *auth.BcryptCodec
	sessions      auth.SessionService

	mailer    *mailer.SMTPMailer
	scheduler *reminder.Scheduler
}

// newApplication creates an application instance with all dependencies
// initialized. Configuration, logging and the database connection must be
// established before this runs.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	app.passwordCodec = auth.NewBcryptCodec(cfg.Auth.BcryptCost)

	var err error
	app.sessions, err = auth.NewSessionService(cfg.Auth.TokenSecret, app.userStore, app.passwordCodec)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session service: %w", err)
	}

	app.mailer = mailer.New(cfg.Mail.Addr, cfg.Mail.From, logger)

	app.scheduler, err = reminder.NewScheduler(
		app.taskStore,
		app.userStore,
		app.mailer,
		cfg.Scheduler.EmptyInterval,
		cfg.Scheduler.ActiveInterval,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reminder scheduler: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the reminder scheduler and the HTTP server, handling lifecycle
// and cleanup.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start(ctx)

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
