package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/store"
)

// healthCheckTimeout bounds each dependency probe so a hung dependency
// cannot stall the health endpoint.
const healthCheckTimeout = 3 * time.Second

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	store    store.RecordStore
	provider embed.Provider
	registry *index.Registry
	model    string
	dim      int
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(st store.RecordStore, provider embed.Provider, reg *index.Registry, model string, dim int) *HealthHandler {
	return &HealthHandler{store: st, provider: provider, registry: reg, model: model, dim: dim}
}

type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	Provider      string `json:"embedding_provider"`
	ProviderReady bool   `json:"provider_ready"`
	Model         string `json:"model"`
	Dim           int    `json:"dim"`
	LiveIndexes   int    `json:"live_indexes"`
}

// Health handles GET /api/v1/health. The endpoint always answers 200 so
// orchestrators can distinguish "process up, dependency down" from
// "process down"; degraded dependencies show up in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    "up",
		Provider:    "up",
		Model:       h.model,
		Dim:         h.dim,
		LiveIndexes: h.registry.LiveCount(),
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "down"
	}

	if err := h.provider.Healthy(ctx); err != nil {
		resp.Status = "degraded"
		resp.Provider = "down"
	} else {
		resp.ProviderReady = true
	}

	respondJSON(w, http.StatusOK, resp)
}
