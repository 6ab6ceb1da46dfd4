package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/festivid/festivid-api/internal/generator"
	"github.com/festivid/festivid-api/internal/holiday"
	"github.com/festivid/festivid-api/internal/storage"
)

// ErrGenerationTerminal is returned when a cancel is requested for a
// generation that already reached a terminal state.
var ErrGenerationTerminal = errors.New("generation already in a terminal state")

// ErrGenerationActive is returned when a delete is requested for a generation
// whose workflow is still running. Running generations must be canceled first;
// deleting them would let the background workflow resurrect the record on its
// next save.
var ErrGenerationActive = errors.New("generation is still running")

// VideoGenerator abstracts the orchestration layer that turns a request
// into a finished artifact.
type VideoGenerator interface {
	Generate(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error)
	Models() []string
	OutputFormat() generator.OutputFormat
}

// GenerateInput contains the input parameters for starting a generation.
type GenerateInput struct {
	// HolidaySlug identifies the theme for the video.
	HolidaySlug string
	// BrandName is the optional brand name woven into the prompt.
	BrandName string
	// ImageData is the decoded logo image.
	ImageData []byte
	// ImageMIMEType is the logo's MIME type.
	ImageMIMEType string
	// PublishToS3 requests S3 delivery for blob artifacts.
	PublishToS3 bool
}

// GenerationService orchestrates the holiday video workflow. It creates the
// Generation aggregate, runs the video generator in the background, records
// progress into the repository, persists the finished artifact, and supports
// per-generation cancellation.
type GenerationService struct {
	repo    Repository
	gen     VideoGenerator
	store   storage.Store
	catalog *holiday.Catalog
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(repo Repository, gen VideoGenerator, store storage.Store, catalog *holiday.Catalog, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		repo:    repo,
		gen:     gen,
		store:   store,
		catalog: catalog,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartGeneration validates the input, persists a new pending Generation,
// and launches the video workflow in the background. The returned aggregate
// reflects the pending state; callers poll GetGeneration for updates.
func (s *GenerationService) StartGeneration(ctx context.Context, input GenerateInput) (*Generation, error) {
	prompt, err := s.catalog.BuildPrompt(input.HolidaySlug, input.BrandName)
	if err != nil {
		return nil, err
	}

	gen := New()
	gen.HolidaySlug = input.HolidaySlug
	gen.BrandName = input.BrandName
	gen.Model = s.gen.Models()[0]
	gen.OutputFormat = string(s.gen.OutputFormat())

	s.logger.Info("creating generation",
		slog.String("generation_id", gen.ID),
		slog.String("holiday", input.HolidaySlug),
		slog.String("model", gen.Model),
		slog.String("output_format", gen.OutputFormat),
	)

	if err := s.repo.Save(ctx, gen); err != nil {
		s.logger.Error("failed to save generation",
			slog.String("generation_id", gen.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[gen.ID] = cancel
	s.mu.Unlock()

	go s.run(runCtx, gen, prompt, input)

	return gen.Clone(), nil
}

// GetGeneration retrieves a generation by ID.
func (s *GenerationService) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	return s.repo.FindByID(ctx, id)
}

// ListGenerations returns all generations.
func (s *GenerationService) ListGenerations(ctx context.Context) ([]*Generation, error) {
	return s.repo.List(ctx)
}

// CancelGeneration cancels a running generation. The background workflow is
// signaled and the stored record is moved to canceled immediately so callers
// observe the cancellation without waiting for the next poll cycle.
func (s *GenerationService) CancelGeneration(ctx context.Context, id string) (*Generation, error) {
	gen, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrGenerationTerminal, gen.GetStatus())
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	if err := gen.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, gen); err != nil {
		return nil, err
	}

	s.logger.Info("generation canceled",
		slog.String("generation_id", id),
	)
	return gen.Clone(), nil
}

// DeleteGeneration removes a terminal generation and its stored artifact,
// if any.
func (s *GenerationService) DeleteGeneration(ctx context.Context, id string) error {
	gen, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !gen.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrGenerationActive, gen.GetStatus())
	}

	if gen.ArtifactPath != "" {
		if err := s.store.DeleteArtifact(ctx, []string{gen.ArtifactPath}); err != nil {
			s.logger.Warn("failed to delete artifact",
				slog.String("generation_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.repo.Delete(ctx, id)
}

// run executes the video workflow for one generation. It owns the live
// aggregate; the repository only ever sees clones saved at each step.
func (s *GenerationService) run(ctx context.Context, gen *Generation, prompt string, input GenerateInput) {
	defer func() {
		s.mu.Lock()
		delete(s.cancels, gen.ID)
		s.mu.Unlock()
	}()

	// Saves must survive cancellation of the workflow context.
	saveCtx := context.Background()

	req := generator.Request{
		ImageData:     input.ImageData,
		ImageMIMEType: input.ImageMIMEType,
		Prompt:        prompt,
	}

	started := false
	onProgress := func(snap generator.Snapshot) {
		if !started {
			started = true
			if err := gen.Start(); err == nil {
				s.logger.Debug("generation processing",
					slog.String("generation_id", gen.ID),
				)
			}
		}
		gen.UpdateProgress(snap.Progress)
		if err := s.repo.Save(saveCtx, gen); err != nil {
			s.logger.Warn("failed to save progress",
				slog.String("generation_id", gen.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	artifact, err := s.gen.Generate(ctx, req, onProgress)
	if err != nil {
		s.finishWithError(saveCtx, gen, err)
		return
	}

	// A fallback may have served the generation on a different model than
	// the primary recorded at creation.
	if artifact.Model != "" {
		gen.SetModel(artifact.Model)
	}

	if err := s.persistArtifact(saveCtx, gen, artifact, input.PublishToS3); err != nil {
		s.finishWithError(saveCtx, gen, err)
		return
	}

	if err := gen.Complete(); err != nil {
		// Lost the race against a cancel; the record already reflects it.
		s.logger.Debug("generation finished after terminal state",
			slog.String("generation_id", gen.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.repo.Save(saveCtx, gen); err != nil {
		s.logger.Error("failed to save finished generation",
			slog.String("generation_id", gen.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("generation succeeded",
		slog.String("generation_id", gen.ID),
		slog.String("video_url", gen.VideoURL),
	)
}

// finishWithError moves the generation to its terminal failure state.
// Caller cancellation maps to canceled, everything else to failed.
func (s *GenerationService) finishWithError(ctx context.Context, gen *Generation, genErr error) {
	var transitionErr error
	if errors.Is(genErr, generator.ErrCanceled) {
		transitionErr = gen.Cancel()
	} else {
		transitionErr = gen.Fail(genErr.Error())
	}
	if transitionErr != nil {
		// Already terminal (concurrent cancel); nothing left to record.
		return
	}

	if err := s.repo.Save(ctx, gen); err != nil {
		s.logger.Error("failed to save failed generation",
			slog.String("generation_id", gen.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Warn("generation finished with error",
		slog.String("generation_id", gen.ID),
		slog.String("status", string(gen.GetStatus())),
		slog.String("error", genErr.Error()),
	)
}

// persistArtifact records the finished artifact on the aggregate, writing
// blob outputs through the store and optionally publishing them to S3.
func (s *GenerationService) persistArtifact(ctx context.Context, gen *Generation, artifact *generator.Artifact, publish bool) error {
	switch artifact.Format {
	case generator.FormatBase64:
		gen.SetArtifact(artifact.URL, artifact.Base64, "")
		return nil

	case generator.FormatBlob:
		name := gen.ID + ".mp4"
		path, err := s.store.SaveArtifact(ctx, name, bytes.NewReader(artifact.Data))
		if err != nil {
			return fmt.Errorf("save artifact: %w", err)
		}

		url := artifact.URL
		if publish {
			published, err := s.store.Publish(ctx, name, bytes.NewReader(artifact.Data))
			switch {
			case err == nil:
				url = published
			case errors.Is(err, storage.ErrS3NotConfigured):
				s.logger.Warn("S3 publish requested but not configured",
					slog.String("generation_id", gen.ID),
				)
			default:
				return fmt.Errorf("publish artifact: %w", err)
			}
		}

		gen.SetArtifact(url, "", path)
		return nil

	default: // generator.FormatURL
		gen.SetArtifact(artifact.URL, "", "")
		return nil
	}
}
