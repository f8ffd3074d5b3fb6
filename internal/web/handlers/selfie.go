package handlers

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/facefind/facefind/internal/embed"
)

// maxSelfieBytes caps an uploaded selfie before it reaches the provider.
const maxSelfieBytes = 20 << 20

// SelfieHandler turns an uploaded selfie into a query embedding.
type SelfieHandler struct {
	provider embed.Provider
	dim      int
}

// NewSelfieHandler creates the selfie handler.
func NewSelfieHandler(provider embed.Provider, dim int) *SelfieHandler {
	return &SelfieHandler{provider: provider, dim: dim}
}

type selfieResponse struct {
	Success       bool      `json:"success"`
	Embedding     []float32 `json:"embedding"`
	Dim           int       `json:"dim"`
	FacesDetected int       `json:"faces_detected"`
	DetScore      float64   `json:"det_score"`
}

// Embed handles POST /api/v1/embed. It accepts a multipart image upload,
// runs face detection, and returns the embedding of the most confident
// face. Callers feed the embedding straight into the match endpoint.
func (h *SelfieHandler) Embed(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSelfieBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	faces, err := h.provider.DetectFaces(r.Context(), data)
	if err != nil {
		log.Warn().Err(err).Msg("selfie embedding failed")
		respondServiceError(w, err)
		return
	}
	if len(faces) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
		return
	}

	best := faces[0]
	for _, face := range faces[1:] {
		if face.DetScore > best.DetScore {
			best = face
		}
	}

	respondJSON(w, http.StatusOK, selfieResponse{
		Success:       true,
		Embedding:     best.Embedding,
		Dim:           h.dim,
		FacesDetected: len(faces),
		DetScore:      best.DetScore,
	})
}
