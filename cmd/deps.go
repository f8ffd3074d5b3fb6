package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/facefind/facefind/internal/config"
	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/service"
	"github.com/facefind/facefind/internal/store"
	"github.com/facefind/facefind/internal/store/mock"
	"github.com/facefind/facefind/internal/store/postgres"
)

// app bundles the wired service graph shared by the CLI commands.
type app struct {
	cfg      *config.Config
	store    store.RecordStore
	pool     *postgres.Pool // nil with the in-memory store
	registry *index.Registry
	provider embed.Provider
	ingest   *service.Ingest
	match    *service.Match
}

// newApp wires the record store, index registry, embedding provider and
// services from the environment configuration. With no DATABASE_URL the
// in-memory store is used; good for development, useless in production
// since every restart loses all records.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	var (
		st   store.RecordStore
		pool *postgres.Pool
	)
	if cfg.Database.URL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory record store")
		st = mock.NewRecordStore(cfg.Embedding.Dim)
	} else {
		var err error
		pool, err = postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		st = postgres.NewRecordRepository(pool, cfg.Embedding.Dim)
	}

	registry := index.NewRegistry(st, index.RegistryConfig{
		Dim:     cfg.Embedding.Dim,
		Kind:    index.Kind(cfg.Index.Kind),
		IdleTTL: cfg.Index.IdleTTL,
	})

	provider := embed.NewClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
	fetcher := embed.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, cfg.Fetch.MaxPixels)

	return &app{
		cfg:      cfg,
		store:    st,
		pool:     pool,
		registry: registry,
		provider: provider,
		ingest:   service.NewIngest(st, registry, provider, fetcher),
		match:    service.NewMatch(registry, cfg.Embedding.Dim),
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	a.registry.Stop()
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database pool")
		}
	}
}
