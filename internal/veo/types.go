// Package veo provides an HTTP client for the Gemini Veo long-running
// video generation API (predictLongRunning + operation polling).
package veo

import (
	"encoding/json"
	"fmt"
)

// SubmitInput contains the payload for starting a video generation operation.
type SubmitInput struct {
	// Prompt is the text (or serialized JSON) prompt describing the video.
	Prompt string
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string
	// ImageMIMEType is the MIME type of the source image (e.g. image/png).
	ImageMIMEType string
	// Parameters carries provider-specific generation options such as
	// aspectRatio or negativePrompt. Passed through verbatim.
	Parameters map[string]any
}

// APIError is the structured error body returned by the Gemini API,
// both inline in failed operations and as a top-level error response.
type APIError struct {
	Code    int    `json:"code,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("veo: api error %d %s: %s", e.Code, e.Status, e.Message)
}

// OperationResult contains the normalized result of polling an operation.
type OperationResult struct {
	// Done reports whether the operation reached a terminal state.
	Done bool
	// OutputURI is the download URI of the generated video (set on success
	// when the provider returned a file reference).
	OutputURI string
	// OutputBase64 is the inline base64 video payload (set on success when
	// the provider returned the bytes directly instead of a URI).
	OutputBase64 string
	// Err is the provider error (set when the operation finished with an error).
	Err *APIError
	// Progress is the provider-reported completion percentage, or -1 when
	// the operation metadata carries no progress information.
	Progress int
}

// predictRequest is the request body for models/{model}:predictLongRunning.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters map[string]any    `json:"parameters,omitempty"`
}

// predictInstance is a single generation instance in a predict request.
type predictInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

// inlineImage is an inline image payload in a predict request.
type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

// predictResponse is the response from the predictLongRunning endpoint.
type predictResponse struct {
	Name  string    `json:"name"`
	Error *APIError `json:"error,omitempty"`
}

// operationResponse is the response from polling GET {operation name}.
// Response and Metadata are kept raw because their shape drifts between
// API versions; see extract.go.
type operationResponse struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *APIError       `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// errorResponse is the top-level error envelope on non-2xx responses.
type errorResponse struct {
	Error *APIError `json:"error,omitempty"`
}

// operationMetadata captures the progress fields observed across API
// versions; only one of them is populated at a time.
type operationMetadata struct {
	ProgressPercent    *int `json:"progressPercent,omitempty"`
	ProgressPercentage *int `json:"progressPercentage,omitempty"`
}

// progressFromMetadata returns the provider-reported progress, or -1 when
// the metadata is absent or carries no recognized progress field.
func progressFromMetadata(raw json.RawMessage) int {
	if len(raw) == 0 {
		return -1
	}
	var md operationMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return -1
	}
	switch {
	case md.ProgressPercent != nil:
		return *md.ProgressPercent
	case md.ProgressPercentage != nil:
		return *md.ProgressPercentage
	default:
		return -1
	}
}
