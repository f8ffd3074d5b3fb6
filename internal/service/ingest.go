// Package service orchestrates ingest and match flows on top of the
// record store, the index registry, and the embedding provider.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/store"
)

// ImageFetcher resolves an image URL to provider-ready bytes.
// Implemented by embed.Fetcher; tests substitute fakes.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Ingest computes and stores face embeddings for uploaded photos.
// Re-ingesting a photo replaces its prior records, so every operation is
// idempotent and safe to retry.
type Ingest struct {
	store    store.RecordStore
	registry *index.Registry
	provider embed.Provider
	fetcher  ImageFetcher
	locks    stripedLocks
}

// NewIngest creates the ingest service.
func NewIngest(st store.RecordStore, reg *index.Registry, provider embed.Provider, fetcher ImageFetcher) *Ingest {
	return &Ingest{
		store:    st,
		registry: reg,
		provider: provider,
		fetcher:  fetcher,
	}
}

// IngestPhoto processes one photo: fetch image, detect faces, upsert the
// embeddings, and update the live index if one exists. Returns the
// number of faces indexed. Zero detected faces is success; it clears any
// stale records for the photo.
//
// When embedding is non-nil the provider call is skipped and the vector
// is stored as the photo's only face (single-face shortcut for callers
// that precomputed it).
func (s *Ingest) IngestPhoto(ctx context.Context, eventID, photoID, imageURL string, embedding []float32) (int, error) {
	if eventID == "" {
		return 0, validationf("event_id is required")
	}
	if photoID == "" {
		return 0, validationf("photo_id is required")
	}

	var records []store.FaceRecord
	switch {
	case embedding != nil:
		records = []store.FaceRecord{{Embedding: embedding, SourceRef: imageURL}}
	case imageURL != "":
		var err error
		records, err = s.detect(ctx, eventID, photoID, imageURL)
		if err != nil {
			return 0, err
		}
	default:
		return 0, validationf("either image_url or embedding is required")
	}

	// Store write and index update apply as a unit relative to other
	// ingests of the same photo, so a retry can never leave the index
	// reflecting a staler state than the store.
	mu := s.locks.forKey(eventID, photoID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.UpsertPhoto(ctx, eventID, photoID, records); err != nil {
		return 0, fmt.Errorf("ingesting photo %s in event %s: %w", photoID, eventID, err)
	}

	// Fill in the identity fields the store assigned by position.
	for i := range records {
		records[i].EventID = eventID
		records[i].PhotoID = photoID
		records[i].FaceSlot = i
	}

	if err := s.registry.OnUpsert(eventID, photoID, records); err != nil {
		return 0, err
	}

	log.Debug().
		Str("event_id", eventID).
		Str("photo_id", photoID).
		Int("faces", len(records)).
		Msg("photo ingested")
	return len(records), nil
}

// detect fetches the image and runs face detection. The store is left
// untouched on any failure along this path.
func (s *Ingest) detect(ctx context.Context, eventID, photoID, imageURL string) ([]store.FaceRecord, error) {
	data, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("ingesting photo %s in event %s: %w", photoID, eventID, err)
	}

	faces, err := s.provider.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("ingesting photo %s in event %s: %w", photoID, eventID, err)
	}

	records := make([]store.FaceRecord, len(faces))
	for i, face := range faces {
		records[i] = store.FaceRecord{
			Embedding: face.Embedding,
			DetScore:  face.DetScore,
			BBox:      face.BBox,
			SourceRef: imageURL,
		}
	}
	return records, nil
}

// DeletePhoto removes a photo's records from the store and from the
// live index. No-op if the photo has no records.
func (s *Ingest) DeletePhoto(ctx context.Context, eventID, photoID string) error {
	if eventID == "" {
		return validationf("event_id is required")
	}
	if photoID == "" {
		return validationf("photo_id is required")
	}

	mu := s.locks.forKey(eventID, photoID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.DeletePhoto(ctx, eventID, photoID); err != nil {
		return fmt.Errorf("deleting photo %s in event %s: %w", photoID, eventID, err)
	}
	s.registry.OnDeletePhoto(eventID, photoID)
	return nil
}

// DeleteEvent removes all of an event's records and drops its index.
func (s *Ingest) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return validationf("event_id is required")
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("deleting event %s: %w", eventID, err)
	}
	s.registry.Invalidate(eventID)
	return nil
}

// BatchPhoto is one photo in a batch ingest request.
type BatchPhoto struct {
	PhotoID  string `json:"photo_id"`
	ImageURL string `json:"image_url"`
}

// BatchItem is the per-photo outcome of a batch ingest.
type BatchItem struct {
	PhotoID      string `json:"photo_id"`
	FacesIndexed int    `json:"faces_indexed"`
	Error        string `json:"error,omitempty"`
}

// BatchResult summarizes a batch ingest. Failures are reported per item;
// one bad photo never aborts the rest.
type BatchResult struct {
	BatchID  string      `json:"batch_id"`
	Ingested int         `json:"ingested"`
	Failed   int         `json:"failed"`
	Items    []BatchItem `json:"items"`
}

// defaultBatchConcurrency bounds parallel provider calls per batch.
const defaultBatchConcurrency = 4

// IngestBatch ingests many photos of one event with bounded parallelism.
func (s *Ingest) IngestBatch(ctx context.Context, eventID string, photos []BatchPhoto, concurrency int) (*BatchResult, error) {
	if eventID == "" {
		return nil, validationf("event_id is required")
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	result := &BatchResult{
		BatchID: uuid.NewString(),
		Items:   make([]BatchItem, len(photos)),
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range photos {
		g.Go(func() error {
			photo := photos[i]
			faces, err := s.IngestPhoto(gctx, eventID, photo.PhotoID, photo.ImageURL, nil)
			item := BatchItem{PhotoID: photo.PhotoID, FacesIndexed: faces}
			if err != nil {
				item.Error = err.Error()
			}
			result.Items[i] = item
			return nil
		})
	}
	// Workers never return errors; failures land in their items.
	_ = g.Wait()

	for i := range result.Items {
		if result.Items[i].Error != "" {
			result.Failed++
		} else {
			result.Ingested++
		}
	}

	log.Info().
		Str("event_id", eventID).
		Str("batch_id", result.BatchID).
		Int("ingested", result.Ingested).
		Int("failed", result.Failed).
		Dur("took", time.Since(start)).
		Msg("batch ingest finished")
	return result, nil
}
