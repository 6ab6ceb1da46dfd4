package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /generations", h.ListGenerations)
	mux.HandleFunc("POST /generations", h.CreateGeneration)
	mux.HandleFunc("GET /generations/{id}", h.GetGeneration)
	mux.HandleFunc("POST /generations/{id}/cancel", h.CancelGeneration)
	mux.HandleFunc("DELETE /generations/{id}", h.DeleteGeneration)
	mux.HandleFunc("GET /holidays", h.ListHolidays)
	mux.HandleFunc("GET /holidays/{slug}", h.GetHoliday)

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
