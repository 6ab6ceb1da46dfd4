package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for Veo client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// GEMINI_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("veo: GEMINI_API_KEY environment variable is not set")
	// ErrModelRequired is returned when the model identifier is not provided.
	ErrModelRequired = errors.New("veo: model is required")
	// ErrPromptRequired is returned when the prompt is empty.
	ErrPromptRequired = errors.New("veo: prompt is required")
	// ErrImageRequired is returned when the image payload is empty.
	ErrImageRequired = errors.New("veo: image payload is required")
	// ErrMIMETypeRequired is returned when the image MIME type is empty.
	ErrMIMETypeRequired = errors.New("veo: image MIME type is required")
	// ErrOperationRequired is returned when the operation name is not provided.
	ErrOperationRequired = errors.New("veo: operation name is required")
	// ErrNoOperationReturned is returned when the submit response contains no operation name.
	ErrNoOperationReturned = errors.New("veo: submit failed: no operation name returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("veo: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("veo: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("veo: request failed")
	// ErrDownloadFailed is returned when the video download fails.
	ErrDownloadFailed = errors.New("veo: download failed")
)

// Client defines the interface for interacting with the Veo API.
type Client interface {
	// Submit starts a long-running video generation operation and returns
	// its operation name. It does not wait for completion.
	Submit(ctx context.Context, model string, in SubmitInput) (operation string, err error)

	// Poll checks the state of an operation and returns the normalized result.
	Poll(ctx context.Context, operation string) (OperationResult, error)

	// Download fetches the generated video bytes from the given URI.
	Download(ctx context.Context, uri string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the Veo Client interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient transport failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for transport retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Veo HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable GEMINI_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  2,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	// If API key was not set via option, try environment variable
	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit starts a long-running video generation operation.
func (c *HTTPClient) Submit(ctx context.Context, model string, in SubmitInput) (string, error) {
	if model == "" {
		return "", ErrModelRequired
	}
	if in.Prompt == "" {
		return "", ErrPromptRequired
	}
	if in.ImageBase64 == "" {
		return "", ErrImageRequired
	}
	if in.ImageMIMEType == "" {
		return "", ErrMIMETypeRequired
	}

	reqBody := predictRequest{
		Instances: []predictInstance{{
			Prompt: in.Prompt,
			Image: &inlineImage{
				BytesBase64Encoded: in.ImageBase64,
				MimeType:           in.ImageMIMEType,
			},
		}},
		Parameters: in.Parameters,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("veo: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, model)

	var resp predictResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Name == "" {
		if resp.Error != nil {
			return "", fmt.Errorf("veo: submit failed: %w", resp.Error)
		}
		return "", ErrNoOperationReturned
	}

	return resp.Name, nil
}

// Poll checks the state of an operation and returns the normalized result.
// A completed operation with none of the known output fields returns a
// result with Done set alongside ErrNoOutput.
func (c *HTTPClient) Poll(ctx context.Context, operation string) (OperationResult, error) {
	if operation == "" {
		return OperationResult{}, ErrOperationRequired
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(operation, "/"))

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return OperationResult{}, err
	}

	result := OperationResult{
		Done:     resp.Done,
		Progress: progressFromMetadata(resp.Metadata),
	}

	if !resp.Done {
		return result, nil
	}

	if resp.Error != nil {
		result.Err = resp.Error
		return result, nil
	}

	out, err := extractOutput(resp.Response)
	if err != nil {
		return result, err
	}
	result.OutputURI = out.URI
	result.OutputBase64 = out.Base64
	return result, nil
}

// Download fetches the generated video bytes from the given URI.
func (c *HTTPClient) Download(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, ErrDownloadFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}

	return data, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry
// for transient transport failures.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: read response: %w", err)}
	}

	// Handle non-2xx status codes. The structured API error is kept on the
	// chain so callers can classify overload-style rejections.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %w", ErrServerError, resp.StatusCode, apiErr)}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %w", ErrRateLimited, apiErr)}
		}
		return fmt.Errorf("%w with status %d: %w", ErrRequestFailed, resp.StatusCode, apiErr)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}

	return nil
}

// parseAPIError decodes the error envelope from a non-2xx body, falling back
// to a synthesized APIError when the body is not the expected JSON shape.
func parseAPIError(statusCode int, body []byte) *APIError {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Code == 0 {
			envelope.Error.Code = statusCode
		}
		return envelope.Error
	}
	return &APIError{Code: statusCode, Message: strings.TrimSpace(string(body))}
}

// retryableError wraps transport errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
