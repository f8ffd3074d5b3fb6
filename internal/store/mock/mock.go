// Package mock provides an in-memory RecordStore for tests and for
// running without a database.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facefind/facefind/internal/store"
)

// RecordStore is an in-memory implementation of store.RecordStore.
// Records are kept per event, keyed by photo ID.
type RecordStore struct {
	mu     sync.RWMutex
	dim    int
	events map[string]map[string][]store.FaceRecord // eventID -> photoID -> records

	// Error injection for tests. When set, the corresponding method
	// returns the error without touching state.
	UpsertError error
	DeleteError error
	ListError   error
	PingError   error
}

// NewRecordStore creates an empty in-memory store validating vectors
// against the given embedding dimension.
func NewRecordStore(dim int) *RecordStore {
	return &RecordStore{
		dim:    dim,
		events: make(map[string]map[string][]store.FaceRecord),
	}
}

// UpsertPhoto replaces all records for a photo within an event.
func (m *RecordStore) UpsertPhoto(ctx context.Context, eventID, photoID string, faces []store.FaceRecord) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}

	for i := range faces {
		if len(faces[i].Embedding) != m.dim {
			return fmt.Errorf("photo %s slot %d: vector length %d, want %d: %w",
				photoID, i, len(faces[i].Embedding), m.dim, store.ErrBadDimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	photos, ok := m.events[eventID]
	if !ok {
		photos = make(map[string][]store.FaceRecord)
		m.events[eventID] = photos
	}

	if len(faces) == 0 {
		delete(photos, photoID)
		return nil
	}

	now := time.Now()
	records := make([]store.FaceRecord, len(faces))
	for i := range faces {
		records[i] = faces[i]
		records[i].EventID = eventID
		records[i].PhotoID = photoID
		records[i].FaceSlot = i
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		// Copy the vector so callers can't mutate stored state.
		vec := make([]float32, len(faces[i].Embedding))
		copy(vec, faces[i].Embedding)
		records[i].Embedding = vec
	}
	photos[photoID] = records
	return nil
}

// DeletePhoto removes all records for a photo. No-op if absent.
func (m *RecordStore) DeletePhoto(ctx context.Context, eventID, photoID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if photos, ok := m.events[eventID]; ok {
		delete(photos, photoID)
	}
	return nil
}

// DeleteEvent removes all records for an event.
func (m *RecordStore) DeleteEvent(ctx context.Context, eventID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, eventID)
	return nil
}

// ListVectors returns all records for an event in a stable order
// (by photo ID, then face slot).
func (m *RecordStore) ListVectors(ctx context.Context, eventID string) ([]store.FaceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	photos := m.events[eventID]
	photoIDs := make([]string, 0, len(photos))
	for id := range photos {
		photoIDs = append(photoIDs, id)
	}
	sort.Strings(photoIDs)

	var records []store.FaceRecord
	for _, id := range photoIDs {
		records = append(records, photos[id]...)
	}
	return records, nil
}

// CountFaces returns the number of face records for an event.
func (m *RecordStore) CountFaces(ctx context.Context, eventID string) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, records := range m.events[eventID] {
		n += len(records)
	}
	return n, nil
}

// CountPhotos returns the number of distinct photos with records.
func (m *RecordStore) CountPhotos(ctx context.Context, eventID string) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events[eventID]), nil
}

// ListEvents returns all event IDs with at least one record.
func (m *RecordStore) ListEvents(ctx context.Context) ([]string, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.events))
	for id, photos := range m.events {
		if len(photos) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping always succeeds unless an error is injected.
func (m *RecordStore) Ping(ctx context.Context) error {
	return m.PingError
}
