package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/facefind/facefind/internal/web/handlers"
	"github.com/facefind/facefind/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	cfg := s.deps.Config

	healthHandler := handlers.NewHealthHandler(
		s.deps.Store, s.deps.Provider, s.deps.Registry,
		cfg.Embedding.Model, cfg.Embedding.Dim,
	)
	ingestHandler := handlers.NewIngestHandler(s.deps.Ingest)
	matchHandler := handlers.NewMatchHandler(s.deps.Match, cfg.Match)
	selfieHandler := handlers.NewSelfieHandler(s.deps.Provider, cfg.Embedding.Dim)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", healthHandler.Health)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read paths: matching and index introspection.
		r.Post("/match", matchHandler.Match)
		r.Post("/embed", selfieHandler.Embed)
		r.Get("/events/{eventID}/index", matchHandler.IndexStatus)

		// Mutating paths are guarded by the API token when configured.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(cfg.Web.APIToken))

			r.Post("/ingest", ingestHandler.Ingest)
			r.Post("/ingest/batch", ingestHandler.IngestBatch)
			r.Post("/events/{eventID}/index/rebuild", matchHandler.RebuildIndex)
			r.Delete("/events/{eventID}", ingestHandler.DeleteEvent)
			r.Delete("/events/{eventID}/photos/{photoID}", ingestHandler.DeletePhoto)
		})
	})
}
