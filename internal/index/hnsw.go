package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/facefind/facefind/internal/store"
)

// hnswEntry mirrors one graph node. The entry's vector is authoritative
// for scoring; the graph is only a candidate generator.
type hnswEntry struct {
	key  store.RecordKey
	vec  []float32
	norm float64
	seq  uint64 // insertion order, for stable tie-breaking
}

// hnswIndex is the approximate implementation backed by an HNSW graph.
// The graph does not support true deletion, so removal drops the entry
// from the lookup map and search results are filtered through it. Every
// candidate is re-scored with exact cosine similarity against the live
// entry vector, so the scoring contract matches the exact index.
type hnswIndex struct {
	mu      sync.RWMutex
	dim     int
	graph   *hnsw.Graph[string]
	byID    map[string]*hnswEntry // wire key -> entry
	seq     uint64
	version uint64
}

func newHNSWIndex(dim int, records []store.FaceRecord) (*hnswIndex, error) {
	idx := &hnswIndex{
		dim:  dim,
		byID: make(map[string]*hnswEntry, len(records)),
	}
	for i := range records {
		if err := idx.Add(records[i].Key(), records[i].Embedding); err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
	}
	return idx, nil
}

// newGraph creates an HNSW graph configured for cosine distance.
func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

func (h *hnswIndex) Add(key store.RecordKey, vec []float32) error {
	if len(vec) != h.dim {
		return fmt.Errorf("add %s: got %d, want %d: %w", key, len(vec), h.dim, ErrDimensionMismatch)
	}

	owned := make([]float32, len(vec))
	copy(owned, vec)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}

	id := key.String()
	if prev, ok := h.byID[id]; ok {
		// Replacement: keep the original sequence number so insertion
		// order (and tie-breaking) is unchanged.
		prev.vec = owned
		prev.norm = vectorNorm(owned)
	} else {
		h.seq++
		h.byID[id] = &hnswEntry{key: key, vec: owned, norm: vectorNorm(owned), seq: h.seq}
	}
	h.graph.Add(hnsw.MakeNode(id, owned))
	h.version++
	return nil
}

func (h *hnswIndex) Remove(key store.RecordKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := key.String()
	if _, ok := h.byID[id]; !ok {
		return
	}
	delete(h.byID, id)
	h.version++
}

func (h *hnswIndex) RemovePhoto(photoID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, entry := range h.byID {
		if entry.key.PhotoID == photoID {
			delete(h.byID, id)
			removed++
		}
	}
	if removed > 0 {
		h.version++
	}
	return removed
}

func (h *hnswIndex) Query(vec []float32, topK int, minScore float64) ([]Match, error) {
	if len(vec) != h.dim {
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(vec), h.dim, ErrDimensionMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}

	qnorm := vectorNorm(vec)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.byID) == 0 {
		return nil, nil
	}

	type scored struct {
		entry *hnswEntry
		score float64
	}
	var candidates []scored

	if qnorm == 0 {
		// Degenerate query vector scores 0 against everything; the graph
		// distance is undefined here, so skip it.
		for _, entry := range h.byID {
			candidates = append(candidates, scored{entry: entry, score: 0})
		}
	} else {
		// Over-fetch so enough candidates survive deletion filtering and
		// the score cutoff.
		searchK := max(topK*hnswSearchMultiplier, hnswMinSearchK)
		seen := make(map[string]bool, searchK)
		for _, node := range h.graph.Search(vec, searchK) {
			if seen[node.Key] {
				continue // replaced entries can appear twice in the graph
			}
			seen[node.Key] = true
			entry, ok := h.byID[node.Key]
			if !ok {
				continue // removed
			}
			score := 0.0
			if entry.norm != 0 {
				var dot float64
				for j := range vec {
					dot += float64(vec[j]) * float64(entry.vec[j])
				}
				score = clampScore(dot / (qnorm * entry.norm))
			}
			candidates = append(candidates, scored{entry: entry, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	matches := make([]Match, 0, min(topK, len(candidates)))
	for _, c := range candidates {
		if c.score < minScore {
			continue
		}
		matches = append(matches, Match{Key: c.entry.key, Score: c.score})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (h *hnswIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

func (h *hnswIndex) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}
