package service

import (
	"context"
	"fmt"

	"github.com/facefind/facefind/internal/index"
)

// PhotoMatch is one matched photo with its best face score.
type PhotoMatch struct {
	PhotoID string  `json:"photo_id"`
	Score   float64 `json:"score"`
}

// Match ranks an event's photos against a query embedding.
type Match struct {
	registry *index.Registry
	dim      int
}

// NewMatch creates the match service for the deployment's fixed
// embedding dimension.
func NewMatch(reg *index.Registry, dim int) *Match {
	return &Match{registry: reg, dim: dim}
}

// Match returns up to topK photos whose best face scores at least
// minScore against the query, sorted descending by score. A photo with
// several matching faces appears once with its best score. An event
// with nothing ingested yields an empty list, not an error.
func (m *Match) Match(ctx context.Context, eventID string, query []float32, topK int, minScore float64) ([]PhotoMatch, error) {
	if eventID == "" {
		return nil, validationf("event_id is required")
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("matching in event %s: query vector length %d, want %d: %w",
			eventID, len(query), m.dim, index.ErrDimensionMismatch)
	}

	idx, err := m.registry.GetOrBuild(ctx, eventID)
	if err != nil {
		return nil, err
	}

	faces, err := idx.Query(query, topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("matching in event %s: %w", eventID, err)
	}

	// Results arrive sorted descending, so the first face seen for a
	// photo is its best.
	seen := make(map[string]bool, len(faces))
	matches := make([]PhotoMatch, 0, len(faces))
	for _, face := range faces {
		if seen[face.Key.PhotoID] {
			continue
		}
		seen[face.Key.PhotoID] = true
		matches = append(matches, PhotoMatch{PhotoID: face.Key.PhotoID, Score: face.Score})
	}
	return matches, nil
}

// Status reports the index lifecycle state for an event.
func (m *Match) Status(eventID string) index.Status {
	return m.registry.Status(eventID)
}

// Rebuild drops the event's live index and builds a fresh one from the
// store. Used after bulk backfills or manual maintenance.
func (m *Match) Rebuild(ctx context.Context, eventID string) (index.Status, error) {
	if eventID == "" {
		return index.Status{}, validationf("event_id is required")
	}
	m.registry.Invalidate(eventID)
	if _, err := m.registry.GetOrBuild(ctx, eventID); err != nil {
		return index.Status{}, err
	}
	return m.registry.Status(eventID), nil
}
