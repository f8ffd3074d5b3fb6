package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/service"
	"github.com/facefind/facefind/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the error taxonomy onto HTTP status codes:
// malformed input 400, provider failure 502, store unreachable 503,
// anything else 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var providerErr *embed.ProviderError

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, store.ErrBadDimension):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &providerErr):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
