package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/festivid/festivid-api/internal/holiday"
	"github.com/festivid/festivid-api/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.GenerationService
	catalog   *holiday.Catalog
	validator *validator.Validate
	logger    *slog.Logger

	// The detail cache itself is single-threaded by contract; handlers run
	// concurrently, so access is serialized here.
	detailMu sync.Mutex
	details  *holiday.DetailCache
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.GenerationService, catalog *holiday.Catalog, details *holiday.DetailCache, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		catalog:   catalog,
		details:   details,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateGeneration handles POST /generations requests.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req CreateGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	logoData, err := base64.StdEncoding.DecodeString(req.LogoBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "logo_base64 is not valid base64", "INVALID_LOGO")
		return
	}

	input := job.GenerateInput{
		HolidaySlug:   req.Holiday,
		BrandName:     req.BrandName,
		ImageData:     logoData,
		ImageMIMEType: req.LogoMIMEType,
		PublishToS3:   req.PublishToS3,
	}

	created, err := h.service.StartGeneration(r.Context(), input)
	if err != nil {
		if errors.Is(err, holiday.ErrUnknownHoliday) {
			writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_HOLIDAY")
			return
		}
		h.logger.Error("failed to start generation",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start generation", "GENERATION_START_FAILED")
		return
	}

	h.logger.Info("generation created",
		slog.String("generation_id", created.ID),
		slog.String("holiday", req.Holiday),
	)

	writeJSON(w, http.StatusAccepted, CreateGenerationResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// GetGeneration handles GET /generations/{id} requests.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	genID := r.PathValue("id")
	if genID == "" {
		writeError(w, http.StatusBadRequest, "generation ID is required", "MISSING_GENERATION_ID")
		return
	}

	found, err := h.service.GetGeneration(r.Context(), genID)
	if err != nil {
		if errors.Is(err, job.ErrGenerationNotFound) {
			writeError(w, http.StatusNotFound, "generation not found", "GENERATION_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get generation",
			slog.String("generation_id", genID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get generation", "GENERATION_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, h.toGenerationResponse(found, true))
}

// ListGenerations handles GET /generations requests. Inline video payloads
// are omitted from the list view; the generation endpoint serves them.
func (h *Handlers) ListGenerations(w http.ResponseWriter, r *http.Request) {
	gens, err := h.service.ListGenerations(r.Context())
	if err != nil {
		h.logger.Error("failed to list generations",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list generations", "GENERATION_LIST_FAILED")
		return
	}

	resp := make([]GenerationResponse, 0, len(gens))
	for _, gen := range gens {
		resp = append(resp, h.toGenerationResponse(gen, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelGeneration handles POST /generations/{id}/cancel requests.
func (h *Handlers) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	genID := r.PathValue("id")
	if genID == "" {
		writeError(w, http.StatusBadRequest, "generation ID is required", "MISSING_GENERATION_ID")
		return
	}

	canceled, err := h.service.CancelGeneration(r.Context(), genID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrGenerationNotFound):
			writeError(w, http.StatusNotFound, "generation not found", "GENERATION_NOT_FOUND")
		case errors.Is(err, job.ErrGenerationTerminal):
			writeError(w, http.StatusConflict, err.Error(), "GENERATION_TERMINAL")
		default:
			h.logger.Error("failed to cancel generation",
				slog.String("generation_id", genID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel generation", "GENERATION_CANCEL_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, h.toGenerationResponse(canceled, true))
}

// DeleteGeneration handles DELETE /generations/{id} requests, removing the
// record and any stored artifact once the generation is terminal.
func (h *Handlers) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	genID := r.PathValue("id")
	if genID == "" {
		writeError(w, http.StatusBadRequest, "generation ID is required", "MISSING_GENERATION_ID")
		return
	}

	if err := h.service.DeleteGeneration(r.Context(), genID); err != nil {
		switch {
		case errors.Is(err, job.ErrGenerationNotFound):
			writeError(w, http.StatusNotFound, "generation not found", "GENERATION_NOT_FOUND")
		case errors.Is(err, job.ErrGenerationActive):
			writeError(w, http.StatusConflict, err.Error(), "GENERATION_ACTIVE")
		default:
			h.logger.Error("failed to delete generation",
				slog.String("generation_id", genID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete generation", "GENERATION_DELETE_FAILED")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListHolidays handles GET /holidays requests.
func (h *Handlers) ListHolidays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// GetHoliday handles GET /holidays/{slug} requests, serving resolved details
// through the bounded cache.
func (h *Handlers) GetHoliday(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "holiday slug is required", "MISSING_HOLIDAY_SLUG")
		return
	}

	h.detailMu.Lock()
	detail, ok := h.details.Get(slug)
	h.detailMu.Unlock()

	if !ok {
		resolved, err := h.catalog.Get(slug)
		if err != nil {
			writeError(w, http.StatusNotFound, "holiday not found", "HOLIDAY_NOT_FOUND")
			return
		}
		h.detailMu.Lock()
		h.details.Put(resolved.Slug, resolved)
		h.detailMu.Unlock()
		detail = resolved
	}

	writeJSON(w, http.StatusOK, detail)
}

// toGenerationResponse maps the aggregate onto the response DTO. With
// includeVideo set it reads the stored artifact into base64 when that is the
// only representation on disk.
func (h *Handlers) toGenerationResponse(gen *job.Generation, includeVideo bool) GenerationResponse {
	resp := GenerationResponse{
		ID:           gen.ID,
		Holiday:      gen.HolidaySlug,
		BrandName:    gen.BrandName,
		Model:        gen.Model,
		Status:       string(gen.Status),
		Progress:     gen.Progress,
		OutputFormat: gen.OutputFormat,
		Error:        gen.Error,
	}

	if gen.Status != job.StatusSucceeded || !includeVideo {
		return resp
	}

	switch {
	case gen.VideoURL != "":
		resp.VideoURL = gen.VideoURL
		resp.VideoBase64 = gen.VideoBase64
	case gen.VideoBase64 != "":
		resp.VideoBase64 = gen.VideoBase64
	case gen.ArtifactPath != "":
		videoData, err := os.ReadFile(gen.ArtifactPath)
		if err != nil {
			h.logger.Error("failed to read stored artifact",
				slog.String("generation_id", gen.ID),
				slog.String("path", gen.ArtifactPath),
				slog.String("error", err.Error()),
			)
			// Don't fail the request, just log and omit video
		} else {
			resp.VideoBase64 = base64.StdEncoding.EncodeToString(videoData)
		}
	}

	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
