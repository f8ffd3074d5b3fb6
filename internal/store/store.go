// Package store defines the durable record store for face embeddings.
// The store is the source of truth; in-memory indexes are derived from it
// and can be discarded and rebuilt at any time.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing store could not be reached.
// Callers may retry; no partial state is left behind.
var ErrUnavailable = errors.New("record store unavailable")

// ErrBadDimension indicates a vector whose length does not match the
// store's configured embedding dimension.
var ErrBadDimension = errors.New("embedding dimension mismatch")

// RecordStore is the durable mapping from (event, photo, face slot) to an
// embedding vector. All mutations are write-through: they are durable
// before the call returns.
type RecordStore interface {
	// UpsertPhoto replaces all face records for a photo within an event
	// with the given list. Slot indexes are assigned by position.
	// An empty list clears any prior records for the photo. Idempotent.
	UpsertPhoto(ctx context.Context, eventID, photoID string, faces []FaceRecord) error

	// DeletePhoto removes all records for a photo. No-op if absent.
	DeletePhoto(ctx context.Context, eventID, photoID string) error

	// DeleteEvent removes all records for an event.
	DeleteEvent(ctx context.Context, eventID string) error

	// ListVectors returns all current records for an event. Ordering is
	// unspecified but stable within one call.
	ListVectors(ctx context.Context, eventID string) ([]FaceRecord, error)

	// CountFaces returns the number of face records stored for an event.
	CountFaces(ctx context.Context, eventID string) (int, error)

	// CountPhotos returns the number of distinct photos with at least one
	// face record in an event.
	CountPhotos(ctx context.Context, eventID string) (int, error)

	// ListEvents returns the IDs of all events with stored records.
	ListEvents(ctx context.Context) ([]string, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
