// Package server provides the HTTP server for the Festivid API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateGenerationRequest is the HTTP request body for starting a generation.
type CreateGenerationRequest struct {
	// Holiday is the theme slug (e.g. "christmas").
	Holiday string `json:"holiday" validate:"required"`
	// BrandName is the optional brand name woven into the prompt.
	BrandName string `json:"brand_name" validate:"omitempty,max=120"`
	// LogoBase64 is the base64-encoded logo image.
	LogoBase64 string `json:"logo_base64" validate:"required,base64"`
	// LogoMIMEType is the logo's MIME type.
	LogoMIMEType string `json:"logo_mime_type" validate:"required,oneof=image/png image/jpeg image/webp"`
	// PublishToS3 requests S3 delivery for blob artifacts.
	PublishToS3 bool `json:"publish_to_s3"`
}

// CreateGenerationResponse is the HTTP response after starting a generation.
type CreateGenerationResponse struct {
	// ID is the unique identifier for the created generation.
	ID string `json:"id"`
	// Status is the initial generation status.
	Status string `json:"status"`
}

// GenerationResponse is the HTTP response for generation details.
type GenerationResponse struct {
	// ID is the unique identifier for the generation.
	ID string `json:"id"`
	// Holiday is the theme slug.
	Holiday string `json:"holiday"`
	// BrandName is the brand name, if provided.
	BrandName string `json:"brand_name,omitempty"`
	// Model is the model serving the generation.
	Model string `json:"model"`
	// Status is the current generation status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// OutputFormat is the requested artifact representation.
	OutputFormat string `json:"output_format"`
	// Error contains any error message if the generation failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the delivery URL of the finished video, when available.
	VideoURL string `json:"video_url,omitempty"`
	// VideoBase64 is the base64-encoded video content, when available.
	VideoBase64 string `json:"video_base64,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
