// Package main provides the entry point for the Festivid API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/festivid/festivid-api/internal/config"
	"github.com/festivid/festivid-api/internal/generator"
	"github.com/festivid/festivid-api/internal/holiday"
	"github.com/festivid/festivid-api/internal/job"
	"github.com/festivid/festivid-api/internal/server"
	"github.com/festivid/festivid-api/internal/storage"
	"github.com/festivid/festivid-api/internal/veo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load a local .env if present; real environments set variables directly.
	_ = godotenv.Load()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Festivid API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("veo_model", cfg.VeoModel),
		slog.Bool("retry_on_overload", cfg.RetryOnOverload),
		slog.String("output_format", cfg.OutputFormat),
		slog.String("artifact_dir", cfg.ArtifactDir),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize storage
	var store storage.Store
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.ArtifactDir, s3Cfg)
		if err != nil {
			return fmt.Errorf("create S3 store: %w", err)
		}
		store = s3Store
		logger.Info("S3 store configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStore(cfg.ArtifactDir)
		if err != nil {
			return fmt.Errorf("create local store: %w", err)
		}
		store = localStore
		logger.Info("local store configured",
			slog.String("artifact_dir", cfg.ArtifactDir),
		)
	}

	// Initialize Veo client and provider adapter
	veoClient, err := veo.NewClient(veo.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return fmt.Errorf("create Veo client: %w", err)
	}
	adapter := generator.NewVeoAdapter(veoClient)

	// Initialize the generation orchestrator
	outputFormat, err := generator.ParseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("parse output format: %w", err)
	}

	orchestrator, err := generator.New(adapter, cfg.VeoModel,
		generator.WithFallbackModels(cfg.VeoFallbackModels...),
		generator.WithRetryOnOverload(cfg.RetryOnOverload),
		generator.WithMaxPollingTime(cfg.MaxPollingTime()),
		generator.WithPollingInterval(cfg.PollingInterval()),
		generator.WithOutputFormat(outputFormat),
		generator.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	// Initialize holiday catalog and detail cache
	catalog := holiday.NewCatalog()
	details, err := holiday.NewDetailCache(cfg.HolidayCacheCapacity)
	if err != nil {
		return fmt.Errorf("create holiday detail cache: %w", err)
	}

	// Initialize generation repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewGenerationService(repo, orchestrator, store, catalog, logger)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(svc, catalog, details, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for large artifact responses
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
