// Package index implements the per-event nearest-neighbor face index and
// the registry that manages the set of live indexes.
//
// An index is a disposable in-memory structure derived from the record
// store. Two implementations share one contract: an exact brute-force
// scan (the default) and an approximate HNSW graph for very large events.
// Both rank by cosine similarity with identical threshold semantics.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/facefind/facefind/internal/store"
)

// Kind selects the index implementation.
type Kind string

// Supported index kinds.
const (
	KindExact Kind = "exact"
	KindHNSW  Kind = "hnsw"
)

// Match is one query result: a record key and its cosine similarity.
type Match struct {
	Key   store.RecordKey
	Score float64
}

// EventIndex is the nearest-neighbor structure for one event's faces.
// Query, Add and Remove are pure in-memory operations and never block
// on I/O.
type EventIndex interface {
	// Add inserts or replaces one entry. Replacing keeps the entry's
	// original insertion position so tie-breaking stays stable.
	Add(key store.RecordKey, vec []float32) error

	// Remove deletes one entry if present; no-op otherwise.
	Remove(key store.RecordKey)

	// RemovePhoto deletes all entries for a photo and returns how many
	// were removed. Used when a photo is re-ingested or deleted.
	RemovePhoto(photoID string) int

	// Query returns up to topK entries with cosine similarity >= minScore
	// against the query vector, sorted descending by score. Ties break by
	// insertion order. Returns ErrDimensionMismatch for a wrong-length
	// query vector.
	Query(vec []float32, topK int, minScore float64) ([]Match, error)

	// Len returns the number of live entries.
	Len() int

	// Version returns a counter bumped on every structural change.
	Version() uint64
}

// New builds an EventIndex of the given kind from a snapshot of records.
func New(kind Kind, dim int, records []store.FaceRecord) (EventIndex, error) {
	switch kind {
	case KindExact, "":
		return newFlatIndex(dim, records)
	case KindHNSW:
		return newHNSWIndex(dim, records)
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

// flatEntry is one indexed vector with its precomputed norm.
type flatEntry struct {
	key  store.RecordKey
	vec  []float32
	norm float64
}

// flatIndex is the exact implementation: a linear scan over all entries
// with precomputed norms. For event sizes typical of a single gathering
// (hundreds to low tens-of-thousands of faces) this is the correct
// default: exact, simple, and sub-50ms at low-thousands scale.
type flatIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []flatEntry // insertion order, preserved across removals
	byKey   map[store.RecordKey]int
	version uint64
}

func newFlatIndex(dim int, records []store.FaceRecord) (*flatIndex, error) {
	idx := &flatIndex{
		dim:   dim,
		byKey: make(map[store.RecordKey]int, len(records)),
	}
	for i := range records {
		if err := idx.Add(records[i].Key(), records[i].Embedding); err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
	}
	return idx, nil
}

func (f *flatIndex) Add(key store.RecordKey, vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("add %s: got %d, want %d: %w", key, len(vec), f.dim, ErrDimensionMismatch)
	}

	owned := make([]float32, len(vec))
	copy(owned, vec)
	entry := flatEntry{key: key, vec: owned, norm: vectorNorm(owned)}

	f.mu.Lock()
	defer f.mu.Unlock()

	if pos, ok := f.byKey[key]; ok {
		f.entries[pos] = entry
	} else {
		f.byKey[key] = len(f.entries)
		f.entries = append(f.entries, entry)
	}
	f.version++
	return nil
}

func (f *flatIndex) Remove(key store.RecordKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(key)
}

func (f *flatIndex) RemovePhoto(photoID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []store.RecordKey
	for key := range f.byKey {
		if key.PhotoID == photoID {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		f.removeLocked(key)
	}
	return len(keys)
}

// removeLocked deletes an entry while preserving the insertion order of
// the remaining entries. Caller holds the write lock.
func (f *flatIndex) removeLocked(key store.RecordKey) {
	pos, ok := f.byKey[key]
	if !ok {
		return
	}
	f.entries = append(f.entries[:pos], f.entries[pos+1:]...)
	delete(f.byKey, key)
	for i := pos; i < len(f.entries); i++ {
		f.byKey[f.entries[i].key] = i
	}
	f.version++
}

func (f *flatIndex) Query(vec []float32, topK int, minScore float64) ([]Match, error) {
	if len(vec) != f.dim {
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(vec), f.dim, ErrDimensionMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}

	qnorm := vectorNorm(vec)

	f.mu.RLock()
	defer f.mu.RUnlock()

	matches := make([]Match, 0, len(f.entries))
	for i := range f.entries {
		e := &f.entries[i]
		score := 0.0
		if qnorm != 0 && e.norm != 0 {
			var dot float64
			for j := range vec {
				dot += float64(vec[j]) * float64(e.vec[j])
			}
			score = clampScore(dot / (qnorm * e.norm))
		}
		if score >= minScore {
			matches = append(matches, Match{Key: e.key, Score: score})
		}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *flatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func (f *flatIndex) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}
