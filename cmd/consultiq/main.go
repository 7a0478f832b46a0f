package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.uber.org/zap"

	"github.com/okalidis/consultiq/internal/adapter/fsm"
	riveradapter "github.com/okalidis/consultiq/internal/adapter/river"
	"github.com/okalidis/consultiq/internal/adapter/sqlite"
	"github.com/okalidis/consultiq/internal/app"
	"github.com/okalidis/consultiq/internal/config"

	handler "github.com/okalidis/consultiq/internal/adapter/http"
	otelx "github.com/okalidis/consultiq/internal/adapter/otel"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stdout sync failure is unactionable

	ctx := context.Background()

	// --- Observability ---
	providers, err := otelx.Setup(ctx, otelx.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	// --- Adapters (out) ---
	db, err := otelx.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database migrate: %w", err)
	}
	defer repo.Close()

	teachers := sqlite.NewTeacherDirectory(repo.DB())

	sweepInterval := time.Duration(0)
	if cfg.PendingTTL > 0 {
		sweepInterval = cfg.ExpirySweepInterval
	}
	riverClient, expiryWorker, err := riveradapter.Setup(ctx, repo.DB(), logger, sweepInterval)
	if err != nil {
		return fmt.Errorf("river setup: %w", err)
	}

	publisher := otelx.NewTracingPublisher(riveradapter.NewPublisher(riverClient))

	// --- Application ---
	svc := app.NewBookingService(
		otelx.NewTracingRepository(repo),
		teachers,
		publisher,
		fsm.New(),
		app.Policy{
			RequireElapsedDate: cfg.RequireElapsedDate,
			PendingTTL:         cfg.PendingTTL,
		},
		logger,
	)
	expiryWorker.Bind(svc)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("consultiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("consultiq", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("consultiq listening", zap.String("port", cfg.Port))
		logger.Info("API docs", zap.String("url", "http://localhost:"+cfg.Port+"/docs"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		logger.Warn("river shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}

	logger.Info("stopped")
	return nil
}
