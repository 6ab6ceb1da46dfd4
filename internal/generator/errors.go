package generator

import (
	"errors"
	"fmt"
	"time"
)

// Static errors for generation requests and orchestration.
var (
	// ErrCanceled is returned when the caller cancels a running generation.
	ErrCanceled = errors.New("generator: generation canceled")
	// ErrProviderRequired is returned when no provider is configured.
	ErrProviderRequired = errors.New("generator: provider is required")
	// ErrModelRequired is returned when no primary model is configured.
	ErrModelRequired = errors.New("generator: primary model is required")
	// ErrPromptRequired is returned when the request prompt is empty.
	ErrPromptRequired = errors.New("generator: prompt is required")
	// ErrImageRequired is returned when the request image payload is empty.
	ErrImageRequired = errors.New("generator: image payload is required")
	// ErrMIMETypeRequired is returned when the request image MIME type is empty.
	ErrMIMETypeRequired = errors.New("generator: image MIME type is required")
	// ErrEmptyHandle is returned when a provider accepts a submission but
	// returns an empty job handle.
	ErrEmptyHandle = errors.New("generator: provider returned an empty job handle")
)

// SubmissionError indicates the provider rejected the request at submission.
// Overloaded distinguishes transient capacity rejections, which are eligible
// for model fallback, from permanent ones (bad input, auth, quota).
type SubmissionError struct {
	Model      string
	Overloaded bool
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Overloaded {
		return fmt.Sprintf("generator: submission to %s rejected (overloaded): %v", e.Model, e.Err)
	}
	return fmt.Sprintf("generator: submission to %s rejected: %v", e.Model, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the provider marked a job complete but
// the response carried none of the known output fields.
type MalformedResponseError struct {
	Handle string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("generator: malformed terminal response for %s: %v", e.Handle, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// GenerationFailedError indicates the provider explicitly reported the job
// as failed or canceled.
type GenerationFailedError struct {
	Model      string
	Message    string
	Overloaded bool
	Canceled   bool
}

func (e *GenerationFailedError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("generator: generation on %s canceled by provider: %s", e.Model, e.Message)
	}
	return fmt.Sprintf("generator: generation on %s failed: %s", e.Model, e.Message)
}

// TimeoutError indicates the polling budget elapsed with no terminal status.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generator: no terminal status after %s (budget %s)", e.Elapsed, e.Budget)
}

// AttemptError records the failure of one model in the fallback chain.
type AttemptError struct {
	Model string
	Err   error
}

// AllModelsExhaustedError indicates every model in the fallback chain failed
// with an overload-class error. Attempts records the per-model history in
// attempt order.
type AllModelsExhaustedError struct {
	Attempts []AttemptError
}

func (e *AllModelsExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "generator: all models exhausted"
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("generator: all %d models exhausted; last (%s): %v", len(e.Attempts), last.Model, last.Err)
}

// Unwrap returns the last attempt's error.
func (e *AllModelsExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// ArtifactFetchError indicates the post-success artifact download or
// conversion failed. This never triggers model fallback.
type ArtifactFetchError struct {
	URL string
	Err error
}

func (e *ArtifactFetchError) Error() string {
	return fmt.Sprintf("generator: fetch artifact %s: %v", e.URL, e.Err)
}

func (e *ArtifactFetchError) Unwrap() error { return e.Err }

// IsOverload reports whether err is an overload-class failure eligible for
// model fallback.
func IsOverload(err error) bool {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Overloaded
	}
	var genErr *GenerationFailedError
	if errors.As(err, &genErr) {
		return genErr.Overloaded
	}
	return false
}
