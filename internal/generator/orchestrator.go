package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default polling parameters. Veo operations typically take 1-4 minutes.
const (
	DefaultMaxPollingTime  = 10 * time.Minute
	DefaultPollingInterval = 5 * time.Second
)

// Non-terminal progress never reaches this value; 100 is reserved for
// confirmed success.
const maxDerivedProgress = 95

// Orchestrator owns the lifecycle of long-running generation requests for
// one configured model chain. Configuration is read-only after construction;
// each Generate/PollForCompletion call runs as an independent task with its
// own timer and attempt state, so one instance may serve many sequential or
// concurrent generations.
type Orchestrator struct {
	provider        Provider
	models          []string // primary first, then fallbacks in order
	retryOnOverload bool
	maxPollingTime  time.Duration
	pollingInterval time.Duration
	outputFormat    OutputFormat
	logger          *slog.Logger

	mu     sync.Mutex
	active map[uint64]context.CancelFunc
	nextID uint64
}

// Option is a function that configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallbackModels sets the ordered fallback chain tried after the primary
// model fails with an overload-class error.
func WithFallbackModels(models ...string) Option {
	return func(o *Orchestrator) {
		o.models = append(o.models[:1], models...)
	}
}

// WithRetryOnOverload enables transparent fallback across the model chain on
// overload-class failures. Disabled by default: any failure propagates
// immediately.
func WithRetryOnOverload(enabled bool) Option {
	return func(o *Orchestrator) {
		o.retryOnOverload = enabled
	}
}

// WithMaxPollingTime sets the total wall-clock budget for one generation,
// measured from the first submission attempt across all fallbacks.
func WithMaxPollingTime(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.maxPollingTime = d
		}
	}
}

// WithPollingInterval sets the delay between status polls.
func WithPollingInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollingInterval = d
		}
	}
}

// WithOutputFormat sets the requested artifact representation.
func WithOutputFormat(f OutputFormat) Option {
	return func(o *Orchestrator) {
		o.outputFormat = f
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator for the given provider and primary model.
func New(provider Provider, model string, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	o := &Orchestrator{
		provider:        provider,
		models:          []string{model},
		maxPollingTime:  DefaultMaxPollingTime,
		pollingInterval: DefaultPollingInterval,
		outputFormat:    FormatURL,
		logger:          slog.Default(),
		active:          make(map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Models returns the configured model chain, primary first.
func (o *Orchestrator) Models() []string {
	out := make([]string, len(o.models))
	copy(out, o.models)
	return out
}

// OutputFormat returns the configured artifact representation.
func (o *Orchestrator) OutputFormat() OutputFormat {
	return o.outputFormat
}

// StartGeneration validates the request and submits it on the primary model,
// returning the provider job handle without waiting for completion.
func (o *Orchestrator) StartGeneration(ctx context.Context, req Request) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", &SubmissionError{Model: o.models[0], Err: err}
	}
	return o.submit(ctx, o.models[0], req)
}

// CheckStatus performs a single non-blocking status poll.
func (o *Orchestrator) CheckStatus(ctx context.Context, handle string) (Snapshot, error) {
	return o.provider.Poll(ctx, handle)
}

// PollForCompletion polls the job until a terminal state, the polling budget
// elapses, or the caller cancels, then materializes the output artifact.
// onProgress may be nil.
func (o *Orchestrator) PollForCompletion(ctx context.Context, handle string, onProgress ProgressFunc) (*Artifact, error) {
	ctx, finish := o.track(ctx)
	defer finish()

	snap, err := o.pollLoop(ctx, o.models[0], handle, time.Now(), onProgress)
	if err != nil {
		return nil, err
	}
	artifact, err := o.materialize(ctx, snap)
	if err != nil {
		return nil, err
	}
	artifact.Model = o.models[0]
	return artifact, nil
}

// Generate runs the full submit + poll cycle, applying model fallback on
// overload-class failures when enabled. The polling budget is measured from
// the first submission attempt and is never reset by a fallback.
func (o *Orchestrator) Generate(ctx context.Context, req Request, onProgress ProgressFunc) (*Artifact, error) {
	if err := validateRequest(req); err != nil {
		return nil, &SubmissionError{Model: o.models[0], Err: err}
	}

	ctx, finish := o.track(ctx)
	defer finish()

	start := time.Now()
	var attempts []AttemptError

	for i, model := range o.models {
		snap, err := o.attempt(ctx, model, req, start, onProgress)
		if err == nil {
			artifact, merr := o.materialize(ctx, snap)
			if merr != nil {
				return nil, merr
			}
			artifact.Model = model
			return artifact, nil
		}

		if !o.retryOnOverload || !IsOverload(err) {
			return nil, err
		}

		attempts = append(attempts, AttemptError{Model: model, Err: err})
		if i < len(o.models)-1 {
			o.logger.Warn("model overloaded, falling back",
				slog.String("model", model),
				slog.String("next_model", o.models[i+1]),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
	}

	return nil, &AllModelsExhaustedError{Attempts: attempts}
}

// Cancel signals cancellation of every loop currently running on this
// instance. It is local only: already-submitted provider jobs keep running
// remotely.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, cancel := range o.active {
		cancel()
	}
}

// attempt runs one submit + poll cycle on a single model. A fallback attempt
// inherits the remaining budget; with none left it must not start a provider
// job it could never poll to completion.
func (o *Orchestrator) attempt(ctx context.Context, model string, req Request, start time.Time, onProgress ProgressFunc) (Snapshot, error) {
	if elapsed := time.Since(start); elapsed >= o.maxPollingTime {
		return Snapshot{}, &TimeoutError{Budget: o.maxPollingTime, Elapsed: elapsed}
	}

	handle, err := o.submit(ctx, model, req)
	if err != nil {
		return Snapshot{}, err
	}
	return o.pollLoop(ctx, model, handle, start, onProgress)
}

// submit starts one provider job and guarantees a non-empty handle.
func (o *Orchestrator) submit(ctx context.Context, model string, req Request) (string, error) {
	handle, err := o.provider.Submit(ctx, model, req)
	if err != nil {
		return "", err
	}
	if handle == "" {
		return "", &SubmissionError{Model: model, Err: ErrEmptyHandle}
	}
	o.logger.Debug("generation submitted",
		slog.String("model", model),
		slog.String("handle", handle),
	)
	return handle, nil
}

// pollLoop polls one job handle until a terminal state, the budget elapses
// (relative to start), or the context is canceled. Cancellation is checked
// at the top of every cycle, before sleeping and before polling.
func (o *Orchestrator) pollLoop(ctx context.Context, model, handle string, start time.Time, onProgress ProgressFunc) (Snapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return Snapshot{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		default:
		}

		if elapsed := time.Since(start); elapsed >= o.maxPollingTime {
			return Snapshot{}, &TimeoutError{Budget: o.maxPollingTime, Elapsed: elapsed}
		}

		snap, err := o.provider.Poll(ctx, handle)
		if err != nil {
			// A cancel that lands while the poll is in flight surfaces as
			// the transport's context error; report it as a cancellation,
			// not a provider failure.
			if ctx.Err() != nil {
				return Snapshot{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
			}
			return Snapshot{}, err
		}
		snap.Progress = o.deriveProgress(snap, time.Since(start))

		if onProgress != nil {
			onProgress(snap)
		}

		switch snap.State {
		case StatusSucceeded:
			return snap, nil
		case StatusFailed, StatusCanceled:
			return Snapshot{}, &GenerationFailedError{
				Model:      model,
				Message:    snap.Error,
				Overloaded: snap.Overloaded,
				Canceled:   snap.State == StatusCanceled,
			}
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		case <-time.After(o.pollingInterval):
		}
	}
}

// deriveProgress fills in a wall-clock estimate when the provider supplies
// none, and guarantees 100 is only ever reported at confirmed success.
func (o *Orchestrator) deriveProgress(snap Snapshot, elapsed time.Duration) int {
	if snap.State == StatusSucceeded {
		return 100
	}
	if snap.Progress < 0 {
		estimate := int(elapsed * 100 / o.maxPollingTime)
		if estimate > maxDerivedProgress {
			estimate = maxDerivedProgress
		}
		return estimate
	}
	if snap.Progress > 99 {
		return 99
	}
	return snap.Progress
}

// materialize converts the successful snapshot's output reference into the
// configured artifact representation. The artifact bytes are fetched at most
// once, and only when the requested format is not url.
func (o *Orchestrator) materialize(ctx context.Context, snap Snapshot) (*Artifact, error) {
	switch o.outputFormat {
	case FormatBase64:
		if snap.OutputBase64 != "" {
			return &Artifact{Format: FormatBase64, Base64: snap.OutputBase64, URL: snap.OutputURL}, nil
		}
		data, err := o.fetch(ctx, snap.OutputURL)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Format: FormatBase64,
			Base64: base64.StdEncoding.EncodeToString(data),
			URL:    snap.OutputURL,
		}, nil

	case FormatBlob:
		return o.materializeBlob(ctx, snap)

	default: // FormatURL
		if snap.OutputURL != "" {
			return &Artifact{Format: FormatURL, URL: snap.OutputURL}, nil
		}
		// Inline-bytes output has no remote reference to hand back;
		// degrade to blob rather than fail a successful generation.
		return o.materializeBlob(ctx, snap)
	}
}

func (o *Orchestrator) materializeBlob(ctx context.Context, snap Snapshot) (*Artifact, error) {
	if snap.OutputBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(snap.OutputBase64)
		if err != nil {
			return nil, &ArtifactFetchError{URL: snap.OutputURL, Err: fmt.Errorf("decode inline payload: %w", err)}
		}
		return &Artifact{Format: FormatBlob, Data: data, URL: snap.OutputURL}, nil
	}
	data, err := o.fetch(ctx, snap.OutputURL)
	if err != nil {
		return nil, err
	}
	return &Artifact{Format: FormatBlob, Data: data, URL: snap.OutputURL}, nil
}

func (o *Orchestrator) fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := o.provider.Fetch(ctx, url)
	if err != nil {
		return nil, &ArtifactFetchError{URL: url, Err: err}
	}
	return data, nil
}

// track derives a cancellable context registered with the instance so that
// Cancel can abort every running loop.
func (o *Orchestrator) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.active[id] = cancel
	o.mu.Unlock()

	return ctx, func() {
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
		cancel()
	}
}

func validateRequest(req Request) error {
	if len(req.ImageData) == 0 {
		return ErrImageRequired
	}
	if req.ImageMIMEType == "" {
		return ErrMIMETypeRequired
	}
	if req.Prompt == "" {
		return ErrPromptRequired
	}
	return nil
}
