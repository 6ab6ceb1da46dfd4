package job

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/festivid/festivid-api/internal/generator"
	"github.com/festivid/festivid-api/internal/holiday"
	"github.com/festivid/festivid-api/internal/storage"
)

// fakeVideoGenerator is a scripted VideoGenerator for service tests.
type fakeVideoGenerator struct {
	generateFn func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error)
	models     []string
	format     generator.OutputFormat
}

func (f *fakeVideoGenerator) Generate(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
	return f.generateFn(ctx, req, onProgress)
}

func (f *fakeVideoGenerator) Models() []string {
	if len(f.models) > 0 {
		return f.models
	}
	return []string{"veo-test"}
}

func (f *fakeVideoGenerator) OutputFormat() generator.OutputFormat {
	if f.format != "" {
		return f.format
	}
	return generator.FormatURL
}

func newTestService(t *testing.T, gen VideoGenerator) (*GenerationService, Repository) {
	t.Helper()
	repo := NewMemoryRepository()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewGenerationService(repo, gen, store, holiday.NewCatalog(), nil), repo
}

func validInput() GenerateInput {
	return GenerateInput{
		HolidaySlug:   "christmas",
		BrandName:     "Acme",
		ImageData:     []byte("logo"),
		ImageMIMEType: "image/png",
	}
}

// waitForTerminal polls the repository until the generation reaches a
// terminal state or the timeout expires.
func waitForTerminal(t *testing.T, repo Repository, id string) *Generation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		gen, err := repo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gen.IsTerminal() {
			return gen
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("generation never reached a terminal state")
	return nil
}

func TestGenerationService_StartGeneration(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{Format: generator.FormatURL, URL: "https://files.example/v.mp4"}, nil
		},
	}
	svc, repo := newTestService(t, fake)
	ctx := context.Background()

	gen, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.ID == "" {
		t.Error("expected generation ID to be set")
	}
	if gen.HolidaySlug != "christmas" {
		t.Errorf("expected holiday christmas, got %s", gen.HolidaySlug)
	}
	if gen.Model != "veo-test" {
		t.Errorf("expected model veo-test, got %s", gen.Model)
	}
	if gen.OutputFormat != "url" {
		t.Errorf("expected output format url, got %s", gen.OutputFormat)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Status != StatusSucceeded {
		t.Errorf("expected status %s, got %s (error: %s)", StatusSucceeded, final.Status, final.Error)
	}
	if final.VideoURL != "https://files.example/v.mp4" {
		t.Errorf("unexpected VideoURL %q", final.VideoURL)
	}
	if final.Progress != 100 {
		t.Errorf("expected progress 100, got %d", final.Progress)
	}
}

func TestGenerationService_StartGeneration_UnknownHoliday(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			t.Error("generator must not be called for an unknown holiday")
			return nil, nil
		},
	}
	svc, _ := newTestService(t, fake)

	_, err := svc.StartGeneration(context.Background(), GenerateInput{
		HolidaySlug:   "arbor-day",
		ImageData:     []byte("logo"),
		ImageMIMEType: "image/png",
	})
	if !errors.Is(err, holiday.ErrUnknownHoliday) {
		t.Errorf("expected ErrUnknownHoliday, got %v", err)
	}
}

func TestGenerationService_PromptCarriesTheme(t *testing.T) {
	prompts := make(chan string, 1)
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			prompts <- req.Prompt
			return &generator.Artifact{Format: generator.FormatURL, URL: "https://files.example/v.mp4"}, nil
		},
	}
	svc, repo := newTestService(t, fake)

	gen, err := svc.StartGeneration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTerminal(t, repo, gen.ID)

	prompt := <-prompts
	if prompt == "" {
		t.Fatal("expected a non-empty prompt")
	}
	for _, want := range []string{"Acme", "Christmas"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt %q missing %q", prompt, want)
		}
	}
}

func TestGenerationService_ProgressIsRecorded(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			onProgress(generator.Snapshot{State: generator.StatusProcessing, Progress: 40})
			return &generator.Artifact{Format: generator.FormatURL, URL: "https://files.example/v.mp4"}, nil
		},
	}
	svc, repo := newTestService(t, fake)

	gen, err := svc.StartGeneration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", final.Status)
	}
	if final.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set once progress was observed")
	}
}

func TestGenerationService_BlobArtifactIsStored(t *testing.T) {
	fake := &fakeVideoGenerator{
		format: generator.FormatBlob,
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{Format: generator.FormatBlob, Data: []byte("video bytes")}, nil
		},
	}
	svc, repo := newTestService(t, fake)

	gen, err := svc.StartGeneration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (error: %s)", final.Status, final.Error)
	}
	if final.ArtifactPath == "" {
		t.Fatal("expected ArtifactPath to be set for blob output")
	}

	content, err := os.ReadFile(final.ArtifactPath)
	if err != nil {
		t.Fatalf("failed to read stored artifact: %v", err)
	}
	if string(content) != "video bytes" {
		t.Errorf("got %q, want %q", string(content), "video bytes")
	}
}

func TestGenerationService_FallbackModelIsRecorded(t *testing.T) {
	fake := &fakeVideoGenerator{
		models: []string{"veo-primary", "veo-fallback"},
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{
				Format: generator.FormatURL,
				URL:    "https://files.example/v.mp4",
				Model:  "veo-fallback",
			}, nil
		},
	}
	svc, repo := newTestService(t, fake)

	gen, err := svc.StartGeneration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Model != "veo-primary" {
		t.Errorf("expected primary model at creation, got %s", gen.Model)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Model != "veo-fallback" {
		t.Errorf("expected serving model veo-fallback, got %s", final.Model)
	}
}

func TestGenerationService_FailureIsRecorded(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return nil, &generator.GenerationFailedError{Model: "veo-test", Message: "render error"}
		},
	}
	svc, repo := newTestService(t, fake)

	gen, err := svc.StartGeneration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, final.Status)
	}
	if final.Error == "" {
		t.Error("expected error message to be recorded")
	}
}

func TestGenerationService_CancelGeneration(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			<-ctx.Done()
			return nil, generator.ErrCanceled
		},
	}
	svc, repo := newTestService(t, fake)
	ctx := context.Background()

	gen, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	canceled, err := svc.CancelGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canceled.Status != StatusCanceled {
		t.Errorf("expected status %s, got %s", StatusCanceled, canceled.Status)
	}

	final := waitForTerminal(t, repo, gen.ID)
	if final.Status != StatusCanceled {
		t.Errorf("expected status %s, got %s", StatusCanceled, final.Status)
	}
}

func TestGenerationService_CancelGeneration_Terminal(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{Format: generator.FormatURL, URL: "https://files.example/v.mp4"}, nil
		},
	}
	svc, repo := newTestService(t, fake)
	ctx := context.Background()

	gen, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTerminal(t, repo, gen.ID)

	_, err = svc.CancelGeneration(ctx, gen.ID)
	if !errors.Is(err, ErrGenerationTerminal) {
		t.Errorf("expected ErrGenerationTerminal, got %v", err)
	}
}

func TestGenerationService_CancelGeneration_NotFound(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return nil, nil
		},
	}
	svc, _ := newTestService(t, fake)

	_, err := svc.CancelGeneration(context.Background(), "nonexistent")
	if !errors.Is(err, ErrGenerationNotFound) {
		t.Errorf("expected ErrGenerationNotFound, got %v", err)
	}
}

func TestGenerationService_DeleteGeneration(t *testing.T) {
	fake := &fakeVideoGenerator{
		format: generator.FormatBlob,
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{Format: generator.FormatBlob, Data: []byte("video bytes")}, nil
		},
	}
	svc, repo := newTestService(t, fake)
	ctx := context.Background()

	gen, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final := waitForTerminal(t, repo, gen.ID)

	if err := svc.DeleteGeneration(ctx, gen.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.FindByID(ctx, gen.ID); !errors.Is(err, ErrGenerationNotFound) {
		t.Errorf("expected ErrGenerationNotFound, got %v", err)
	}
	if _, err := os.Stat(final.ArtifactPath); !os.IsNotExist(err) {
		t.Errorf("artifact file %s still exists", final.ArtifactPath)
	}
}

func TestGenerationService_DeleteGeneration_Active(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			<-ctx.Done()
			return nil, generator.ErrCanceled
		},
	}
	svc, repo := newTestService(t, fake)
	ctx := context.Background()

	gen, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteGeneration(ctx, gen.ID); !errors.Is(err, ErrGenerationActive) {
		t.Errorf("expected ErrGenerationActive, got %v", err)
	}

	if _, err := svc.CancelGeneration(ctx, gen.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTerminal(t, repo, gen.ID)

	if err := svc.DeleteGeneration(ctx, gen.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerationService_GetGeneration(t *testing.T) {
	fake := &fakeVideoGenerator{
		generateFn: func(ctx context.Context, req generator.Request, onProgress generator.ProgressFunc) (*generator.Artifact, error) {
			return &generator.Artifact{Format: generator.FormatURL, URL: "https://files.example/v.mp4"}, nil
		},
	}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	created, err := svc.StartGeneration(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := svc.GetGeneration(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, found.ID)
	}

	if _, err := svc.GetGeneration(ctx, "nonexistent"); !errors.Is(err, ErrGenerationNotFound) {
		t.Errorf("expected ErrGenerationNotFound, got %v", err)
	}
}
