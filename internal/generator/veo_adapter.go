package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/festivid/festivid-api/internal/veo"
)

// OverloadClassifier decides whether a provider error represents transient
// capacity exhaustion. The exact signal is provider-specific and has changed
// across API revisions, so it is pluggable rather than hardcoded.
type OverloadClassifier func(code int, status, message string) bool

// DefaultOverloadClassifier matches the overload signals observed from the
// Gemini API: HTTP 429/503, the RESOURCE_EXHAUSTED and UNAVAILABLE gRPC
// statuses, and the "model is overloaded" message.
func DefaultOverloadClassifier(code int, status, message string) bool {
	if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
		return true
	}
	switch status {
	case "RESOURCE_EXHAUSTED", "UNAVAILABLE":
		return true
	}
	return strings.Contains(strings.ToLower(message), "overloaded")
}

// VeoAdapter adapts the Veo client to the Provider interface.
type VeoAdapter struct {
	client     veo.Client
	isOverload OverloadClassifier
}

// VeoAdapterOption is a function that configures a VeoAdapter.
type VeoAdapterOption func(*VeoAdapter)

// WithOverloadClassifier replaces the default overload predicate.
func WithOverloadClassifier(fn OverloadClassifier) VeoAdapterOption {
	return func(a *VeoAdapter) {
		a.isOverload = fn
	}
}

// NewVeoAdapter creates a new Veo provider adapter.
func NewVeoAdapter(client veo.Client, opts ...VeoAdapterOption) *VeoAdapter {
	a := &VeoAdapter{
		client:     client,
		isOverload: DefaultOverloadClassifier,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit starts a Veo generation operation for the request.
func (a *VeoAdapter) Submit(ctx context.Context, model string, req Request) (string, error) {
	in := veo.SubmitInput{
		Prompt:        req.Prompt,
		ImageBase64:   base64.StdEncoding.EncodeToString(req.ImageData),
		ImageMIMEType: req.ImageMIMEType,
		Parameters:    req.Options,
	}

	operation, err := a.client.Submit(ctx, model, in)
	if err != nil {
		return "", &SubmissionError{
			Model:      model,
			Overloaded: a.classify(err),
			Err:        err,
		}
	}
	return operation, nil
}

// Poll maps a single Veo operation check onto the canonical snapshot.
func (a *VeoAdapter) Poll(ctx context.Context, handle string) (Snapshot, error) {
	result, err := a.client.Poll(ctx, handle)
	if err != nil {
		if errors.Is(err, veo.ErrNoOutput) {
			return Snapshot{}, &MalformedResponseError{Handle: handle, Err: err}
		}
		return Snapshot{}, fmt.Errorf("veo adapter poll: %w", err)
	}

	if !result.Done {
		return Snapshot{
			State:    StatusProcessing,
			Progress: result.Progress,
		}, nil
	}

	if result.Err != nil {
		state := StatusFailed
		if result.Err.Status == "CANCELLED" {
			state = StatusCanceled
		}
		message := result.Err.Message
		if message == "" {
			message = result.Err.Error()
		}
		return Snapshot{
			State:      state,
			Progress:   result.Progress,
			Error:      message,
			Overloaded: a.isOverload(result.Err.Code, result.Err.Status, result.Err.Message),
		}, nil
	}

	return Snapshot{
		State:        StatusSucceeded,
		Progress:     100,
		OutputURL:    result.OutputURI,
		OutputBase64: result.OutputBase64,
	}, nil
}

// Fetch downloads the generated video bytes from the output reference.
func (a *VeoAdapter) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := a.client.Download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("veo adapter fetch: %w", err)
	}
	return data, nil
}

// classify applies the overload predicate to a submission-stage error,
// probing the chain for the structured API error first and falling back to
// the transport-level rate limit sentinel.
func (a *VeoAdapter) classify(err error) bool {
	var apiErr *veo.APIError
	if errors.As(err, &apiErr) {
		return a.isOverload(apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return errors.Is(err, veo.ErrRateLimited)
}

// Compile-time check that VeoAdapter implements Provider.
var _ Provider = (*VeoAdapter)(nil)
