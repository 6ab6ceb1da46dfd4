// Package bootstrap provides dependency initialization for the Festivid API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/festivid/festivid-api/internal/config"
	"github.com/festivid/festivid-api/internal/generator"
	"github.com/festivid/festivid-api/internal/holiday"
	"github.com/festivid/festivid-api/internal/job"
	"github.com/festivid/festivid-api/internal/storage"
	"github.com/festivid/festivid-api/internal/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	GenerationService *job.GenerationService
	Catalog           *holiday.Catalog
	DetailCache       *holiday.DetailCache
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Veo client
	veoClient, err := veo.NewClient(veo.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create Veo client: %w", err)
	}
	adapter := generator.NewVeoAdapter(veoClient)

	// Initialize the generation orchestrator
	outputFormat, err := generator.ParseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return nil, fmt.Errorf("parse output format: %w", err)
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
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	// Initialize holiday catalog and detail cache
	catalog := holiday.NewCatalog()
	details, err := holiday.NewDetailCache(cfg.HolidayCacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("create holiday detail cache: %w", err)
	}

	// Initialize generation repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewGenerationService(repo, orchestrator, store, catalog, logger)

	return &Dependencies{
		GenerationService: svc,
		Catalog:           catalog,
		DetailCache:       details,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
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
			return nil, fmt.Errorf("create S3 store: %w", err)
		}
		logger.Info("S3 store configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	logger.Info("local store configured",
		slog.String("artifact_dir", cfg.ArtifactDir),
	)
	return localStore, nil
}
