package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-decks/internal/api"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/events"
	"github.com/phrazzld/scry-decks/internal/extract"
	"github.com/phrazzld/scry-decks/internal/generation"
	"github.com/phrazzld/scry-decks/internal/platform/gemini"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/phrazzld/scry-decks/internal/service/auth"
	"github.com/phrazzld/scry-decks/internal/service/deckgen"
	"github.com/phrazzld/scry-decks/internal/service/metering"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/phrazzld/scry-decks/internal/task"
	"golang.org/x/sync/errgroup"
)

// application holds the shared dependencies so they can be released
// together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	profileStore store.ProfileStore
	deckStore    store.DeckStore

	jwtService auth.JWTService
	generator  generation.Generator
	pipeline   *deckgen.Pipeline

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
}

// newApplication wires every component on top of an open database. The task
// runner is started only once every component has been built.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.profileStore = postgres.NewPostgresProfileStore(db, logger)
	app.deckStore = postgres.NewPostgresDeckStore(db, logger)

	app.generator, err = gemini.NewGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "model", cfg.LLM.ModelName)

	app.taskRunner = task.NewTaskRunner(task.DefaultTaskRunnerConfig(), logger)
	defer func() {
		if err != nil {
			_ = app.taskRunner.Stop(context.Background())
		}
	}()

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(
		task.NewReconciliationEventHandler(app.taskRunner, app.profileStore, logger),
		events.TypeUsageReconciliation,
	)

	gate, err := metering.NewGate(app.profileStore, app.eventEmitter, cfg.Metering, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metering gate: %w", err)
	}

	extractCfg, err := extractConfig(cfg.Extract)
	if err != nil {
		return nil, err
	}
	extractor := extract.New(extractCfg, logger)

	app.pipeline, err = deckgen.NewPipeline(
		extractor,
		app.generator,
		gate,
		cfg.Metering.GenerationCost,
		logger,
		deckgen.WithDeckStore(app.deckStore),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deck pipeline: %w", err)
	}

	app.taskRunner.Start()

	logger.Info("Application initialized successfully",
		"generation_cost", cfg.Metering.GenerationCost)
	return app, nil
}

func extractConfig(cfg config.ExtractConfig) (extract.Config, error) {
	maxFetch, err := cfg.MaxFetchBytes()
	if err != nil {
		return extract.Config{}, err
	}
	maxDocument, err := cfg.MaxDocumentBytes()
	if err != nil {
		return extract.Config{}, err
	}
	return extract.Config{
		FetchTimeout:     cfg.FetchTimeout,
		MaxFetchBytes:    maxFetch,
		MaxDocumentBytes: maxDocument,
		UserAgent:        cfg.UserAgent,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	router, err := api.NewRouter(api.RouterDeps{
		Generator:  app.pipeline,
		Decks:      app.deckStore,
		Profiles:   app.profileStore,
		JWTService: app.jwtService,
		Config:     app.config,
		Logger:     app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation waits on the model, so responses may take minutes.
		WriteTimeout: app.config.LLM.RequestTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	app.logger.Info("Server shutdown completed")
	return nil
}

// cleanup drains background work and closes the database.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		if err := app.taskRunner.Stop(ctx); err != nil && !errors.Is(err, task.ErrRunnerNotStarted) {
			app.logger.Error("Error stopping task runner", "error", err)
		}
		cancel()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
