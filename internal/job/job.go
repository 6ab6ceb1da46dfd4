// Package job provides the Generation aggregate for managing holiday video
// generations. It includes the Generation entity with state machine
// transitions over the canonical statuses, as well as repository interfaces
// for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/festivid/festivid-api/internal/job/id"
)

// Status represents the current state of a Generation.
type Status string

const (
	// StatusPending indicates the generation is accepted but not yet
	// confirmed by the video provider.
	StatusPending Status = "pending"
	// StatusProcessing indicates the provider is rendering the video.
	StatusProcessing Status = "processing"
	// StatusSucceeded indicates the video finished successfully.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the generation encountered an error.
	StatusFailed Status = "failed"
	// StatusCanceled indicates the generation was canceled.
	StatusCanceled Status = "canceled"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCanceled},
	StatusProcessing: {StatusSucceeded, StatusFailed, StatusCanceled},
	StatusSucceeded:  {},
	StatusFailed:     {},
	StatusCanceled:   {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Generation represents one holiday video generation aggregate.
// It contains all state related to turning a logo into a themed video.
type Generation struct {
	mu sync.RWMutex

	// ID is the unique identifier for this generation.
	ID string
	// HolidaySlug identifies the theme driving the prompt.
	HolidaySlug string
	// BrandName is the optional brand name woven into the prompt.
	BrandName string
	// Model is the model that ultimately served the generation. It starts
	// as the primary model and is updated if a fallback takes over.
	Model string
	// Status is the current generation state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the generation failed.
	Error string
	// OutputFormat is the requested artifact representation.
	OutputFormat string
	// VideoURL is the delivery URL for the finished video, when available.
	VideoURL string
	// VideoBase64 holds the inline payload when base64 output was requested.
	VideoBase64 string
	// ArtifactPath is the local path of the stored video file, when the
	// artifact was materialized as bytes.
	ArtifactPath string
	// CreatedAt is when the generation was created.
	CreatedAt time.Time
	// UpdatedAt is when the generation was last updated.
	UpdatedAt time.Time
	// StartedAt is when provider processing was first observed.
	StartedAt time.Time
	// CompletedAt is when the generation reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Generation with a generated ID and initial pending status.
func New() *Generation {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Generation with the specified ID and initial
// pending status. Useful for testing or when the ID is externally generated.
func NewWithID(genID string) *Generation {
	now := time.Now()
	return &Generation{
		ID:        genID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the generation status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (g *Generation) TransitionTo(status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !canTransition(g.Status, status) {
		return ErrInvalidTransition
	}

	g.Status = status
	g.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusProcessing:
		g.StartedAt = g.UpdatedAt
	case StatusSucceeded, StatusFailed, StatusCanceled:
		g.CompletedAt = g.UpdatedAt
	}

	return nil
}

// Start transitions the generation from pending to processing.
// Returns ErrInvalidTransition if the generation is not pending.
func (g *Generation) Start() error {
	return g.TransitionTo(StatusProcessing)
}

// Complete transitions the generation to succeeded and pins progress at 100.
// Returns ErrInvalidTransition if the transition is not allowed.
func (g *Generation) Complete() error {
	if err := g.TransitionTo(StatusSucceeded); err != nil {
		return err
	}
	g.mu.Lock()
	g.Progress = 100
	g.mu.Unlock()
	return nil
}

// Fail transitions the generation to failed with an error message.
// Returns ErrInvalidTransition if the transition is not allowed.
func (g *Generation) Fail(errMsg string) error {
	g.mu.Lock()
	g.Error = errMsg
	g.mu.Unlock()
	return g.TransitionTo(StatusFailed)
}

// Cancel transitions the generation to canceled.
// Returns ErrInvalidTransition if the transition is not allowed.
func (g *Generation) Cancel() error {
	return g.TransitionTo(StatusCanceled)
}

// GetStatus returns the current generation status (thread-safe).
func (g *Generation) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status
}

// UpdateProgress sets the progress percentage. Values are clamped to 0-99
// for non-terminal generations; only Complete reports 100.
func (g *Generation) UpdateProgress(progress int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 99 && g.Status != StatusSucceeded {
		progress = 99
	}
	g.Progress = progress
	g.UpdatedAt = time.Now()
}

// SetModel records the model currently serving the generation.
func (g *Generation) SetModel(model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Model = model
	g.UpdatedAt = time.Now()
}

// SetArtifact records where the finished video lives.
func (g *Generation) SetArtifact(videoURL, videoBase64, artifactPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VideoURL = videoURL
	g.VideoBase64 = videoBase64
	g.ArtifactPath = artifactPath
	g.UpdatedAt = time.Now()
}

// IsTerminal returns true if the generation is in a terminal state.
func (g *Generation) IsTerminal() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status == StatusSucceeded ||
		g.Status == StatusFailed ||
		g.Status == StatusCanceled
}

// Clone creates a deep copy of the generation for safe reads.
func (g *Generation) Clone() *Generation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return &Generation{
		ID:           g.ID,
		HolidaySlug:  g.HolidaySlug,
		BrandName:    g.BrandName,
		Model:        g.Model,
		Status:       g.Status,
		Progress:     g.Progress,
		Error:        g.Error,
		OutputFormat: g.OutputFormat,
		VideoURL:     g.VideoURL,
		VideoBase64:  g.VideoBase64,
		ArtifactPath: g.ArtifactPath,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		StartedAt:    g.StartedAt,
		CompletedAt:  g.CompletedAt,
	}
}
