package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/facefind/facefind/internal/service"
)

// maxBatchPhotos caps one batch request; larger backfills go through the
// CLI which pages on its own.
const maxBatchPhotos = 500

// IngestHandler exposes photo ingest and deletion over HTTP.
type IngestHandler struct {
	ingest *service.Ingest
}

// NewIngestHandler creates the ingest handler.
func NewIngestHandler(ingest *service.Ingest) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestRequest struct {
	EventID   string    `json:"event_id"`
	PhotoID   string    `json:"photo_id"`
	ImageURL  string    `json:"image_url"`
	Embedding []float32 `json:"embedding"`
}

type ingestResponse struct {
	Success      bool   `json:"success"`
	EventID      string `json:"event_id"`
	PhotoID      string `json:"photo_id"`
	FacesIndexed int    `json:"faces_indexed"`
}

// Ingest handles POST /api/v1/ingest. The request carries either an
// image URL (faces are detected by the provider) or a precomputed
// embedding.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	faces, err := h.ingest.IngestPhoto(r.Context(), req.EventID, req.PhotoID, req.ImageURL, req.Embedding)
	if err != nil {
		log.Warn().Err(err).
			Str("event_id", sanitizeForLog(req.EventID)).
			Str("photo_id", sanitizeForLog(req.PhotoID)).
			Msg("ingest failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ingestResponse{
		Success:      true,
		EventID:      req.EventID,
		PhotoID:      req.PhotoID,
		FacesIndexed: faces,
	})
}

type batchRequest struct {
	EventID     string               `json:"event_id"`
	Photos      []service.BatchPhoto `json:"photos"`
	Concurrency int                  `json:"concurrency"`
}

// IngestBatch handles POST /api/v1/ingest/batch. Per-photo failures are
// reported in the response items; the endpoint itself fails only on a
// malformed request.
func (h *IngestHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Photos) == 0 {
		respondError(w, http.StatusBadRequest, "photos is required")
		return
	}
	if len(req.Photos) > maxBatchPhotos {
		respondError(w, http.StatusBadRequest, "too many photos in one batch")
		return
	}

	result, err := h.ingest.IngestBatch(r.Context(), req.EventID, req.Photos, req.Concurrency)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// DeletePhoto handles DELETE /api/v1/events/{eventID}/photos/{photoID}.
func (h *IngestHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	photoID := chi.URLParam(r, "photoID")

	if err := h.ingest.DeletePhoto(r.Context(), eventID, photoID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteEvent handles DELETE /api/v1/events/{eventID}. It removes all of
// the event's records and drops its index.
func (h *IngestHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if err := h.ingest.DeleteEvent(r.Context(), eventID); err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().Str("event_id", sanitizeForLog(eventID)).Msg("event deleted")
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
