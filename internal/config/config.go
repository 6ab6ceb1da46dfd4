// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrGeminiAPIKeyRequired is returned when GEMINI_API_KEY is not set.
	ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
	// ErrInvalidOutputFormat is returned when OUTPUT_FORMAT is not one of
	// url, base64, or blob.
	ErrInvalidOutputFormat = errors.New("config: OUTPUT_FORMAT must be url, base64, or blob")
	// ErrInvalidPollingSettings is returned when a polling duration is not positive.
	ErrInvalidPollingSettings = errors.New("config: polling settings must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Gemini / Veo settings
	GeminiAPIKey      string   `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	VeoModel          string   `env:"VEO_MODEL, default=veo-3.0-generate-001" json:"veo_model"`
	VeoFallbackModels []string `env:"VEO_FALLBACK_MODELS" json:"veo_fallback_models,omitempty"`
	RetryOnOverload   bool     `env:"RETRY_ON_OVERLOAD, default=false" json:"retry_on_overload"`

	// Polling settings (milliseconds)
	MaxPollingTimeMS  int `env:"MAX_POLLING_TIME_MS, default=600000" json:"max_polling_time_ms"`
	PollingIntervalMS int `env:"POLLING_INTERVAL_MS, default=5000" json:"polling_interval_ms"`

	// Output settings
	OutputFormat string `env:"OUTPUT_FORMAT, default=url" json:"output_format"` // "url", "base64", or "blob"

	// Storage settings
	ArtifactDir string `env:"ARTIFACT_DIR, default=/tmp/festivid" json:"artifact_dir"`

	// Holiday settings
	HolidayCacheCapacity int `env:"HOLIDAY_CACHE_CAPACITY, default=16" json:"holiday_cache_capacity"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxPollingTime returns the polling budget as a duration.
func (c *Config) MaxPollingTime() time.Duration {
	return time.Duration(c.MaxPollingTimeMS) * time.Millisecond
}

// PollingInterval returns the delay between polls as a duration.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMS) * time.Millisecond
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "GEMINI_API_KEY") {
			return nil, ErrGeminiAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrGeminiAPIKeyRequired
	}
	switch strings.ToLower(c.OutputFormat) {
	case "url", "base64", "blob":
	default:
		return ErrInvalidOutputFormat
	}
	if c.MaxPollingTimeMS <= 0 || c.PollingIntervalMS <= 0 {
		return ErrInvalidPollingSettings
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, VeoModel: %s, VeoFallbackModels: %v, RetryOnOverload: %t, MaxPollingTimeMS: %d, PollingIntervalMS: %d, OutputFormat: %s, ArtifactDir: %s, HolidayCacheCapacity: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.VeoModel,
		c.VeoFallbackModels,
		c.RetryOnOverload,
		c.MaxPollingTimeMS,
		c.PollingIntervalMS,
		c.OutputFormat,
		c.ArtifactDir,
		c.HolidayCacheCapacity,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
