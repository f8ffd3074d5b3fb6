package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facefind/facefind/internal/config"
	"github.com/facefind/facefind/internal/service"
)

// MatchHandler exposes photo matching and index introspection over HTTP.
type MatchHandler struct {
	match    *service.Match
	defaults config.MatchConfig
}

// NewMatchHandler creates the match handler. Unset request fields fall
// back to the configured defaults.
func NewMatchHandler(match *service.Match, defaults config.MatchConfig) *MatchHandler {
	return &MatchHandler{match: match, defaults: defaults}
}

type matchRequest struct {
	EventID   string    `json:"event_id"`
	Embedding []float32 `json:"user_embedding"`
	TopK      int       `json:"top_k"`
	Threshold *float64  `json:"threshold"`
}

type matchResponse struct {
	Success       bool                 `json:"success"`
	EventID       string               `json:"event_id"`
	Matches       []service.PhotoMatch `json:"matches"`
	Count         int                  `json:"count"`
	ThresholdUsed float64              `json:"threshold_used"`
}

// Match handles POST /api/v1/match. It ranks the event's photos against
// the query embedding; an event with nothing ingested yields an empty
// match list.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.defaults.TopK
	}
	// threshold zero is meaningful (no cutoff), so only a missing
	// field picks up the default.
	threshold := h.defaults.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	matches, err := h.match.Match(r.Context(), req.EventID, req.Embedding, topK, threshold)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, matchResponse{
		Success:       true,
		EventID:       req.EventID,
		Matches:       matches,
		Count:         len(matches),
		ThresholdUsed: threshold,
	})
}

// IndexStatus handles GET /api/v1/events/{eventID}/index.
func (h *MatchHandler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	respondJSON(w, http.StatusOK, h.match.Status(eventID))
}

// RebuildIndex handles POST /api/v1/events/{eventID}/index/rebuild. It
// drops the live index and rebuilds it from the store before answering.
func (h *MatchHandler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	status, err := h.match.Rebuild(r.Context(), eventID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
