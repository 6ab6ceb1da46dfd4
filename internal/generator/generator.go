// Package generator provides the provider-neutral video generation layer:
// the canonical job status model, the Provider port implemented by provider
// adapters, and the Orchestrator that owns the full lifecycle of a
// long-running generation request (submission, polling, overload fallback,
// cancellation, timeout, and output materialization).
package generator

import (
	"context"
	"fmt"
)

// Status represents the canonical state of a generation job.
type Status string

// Canonical job statuses. Provider adapters map provider-specific states
// onto this closed set.
const (
	StatusPending    Status = "pending"    // Job submitted but not yet confirmed running
	StatusProcessing Status = "processing" // Job is being processed by the provider
	StatusSucceeded  Status = "succeeded"  // Job finished with a video output
	StatusFailed     Status = "failed"     // Job failed with a provider error
	StatusCanceled   Status = "canceled"   // Job was canceled
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Request contains the input for one generation job. It is immutable once
// submitted; fallback attempts resubmit the same value.
type Request struct {
	// ImageData is the binary source image payload.
	ImageData []byte
	// ImageMIMEType is the MIME type of the source image (e.g. image/png).
	ImageMIMEType string
	// Prompt is the text (or serialized JSON) prompt for the video.
	Prompt string
	// Options carries provider-specific generation options such as
	// aspectRatio or negativePrompt.
	Options map[string]any
}

// Snapshot is one observed status of an in-flight job.
type Snapshot struct {
	// State is the canonical job status.
	State Status
	// Progress is the completion estimate (0-100), or -1 when neither the
	// provider nor the polling loop has derived one yet.
	Progress int
	// OutputURL is the remote video reference (set only on succeeded).
	OutputURL string
	// OutputBase64 is the inline base64 video payload (set only on
	// succeeded, when the provider returned bytes instead of a URL).
	OutputBase64 string
	// Error is the provider failure message (set only on failed/canceled).
	Error string
	// Overloaded flags failures caused by transient provider capacity
	// exhaustion; these are eligible for model fallback.
	Overloaded bool
}

// ProgressFunc receives a snapshot for every poll cycle. It is invoked
// synchronously from the polling loop, in wall-clock order of polls.
type ProgressFunc func(Snapshot)

// OutputFormat selects the representation of the final artifact.
type OutputFormat string

// Supported output formats.
const (
	FormatURL    OutputFormat = "url"    // Remote reference, no artifact transfer
	FormatBase64 OutputFormat = "base64" // Base64-encoded video content
	FormatBlob   OutputFormat = "blob"   // Raw video bytes
)

// ParseOutputFormat validates and normalizes an output format string.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatURL, FormatBase64, FormatBlob:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("generator: unknown output format %q", s)
	}
}

// Artifact is the final video payload in the caller-requested representation.
// Exactly one of URL, Base64, or Data is authoritative depending on Format;
// URL is additionally set on fetched artifacts when a remote reference exists.
type Artifact struct {
	Format OutputFormat
	URL    string
	Base64 string
	Data   []byte
	// Model is the model that produced the video; with fallback enabled
	// this may differ from the primary.
	Model string
}

// Provider defines the port implemented by provider adapters. All calls are
// single non-blocking provider interactions; the Orchestrator owns looping,
// timeouts, and fallback.
type Provider interface {
	// Submit starts a generation job on the given model and returns an
	// opaque job handle. It never blocks for completion.
	Submit(ctx context.Context, model string, req Request) (handle string, err error)

	// Poll performs a single status check for a job handle and returns the
	// canonical snapshot.
	Poll(ctx context.Context, handle string) (Snapshot, error)

	// Fetch downloads the artifact bytes behind a remote output reference.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
