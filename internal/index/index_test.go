package index

import (
	"math"
	"testing"

	"github.com/facefind/facefind/internal/store"
)

const testDim = 4

// key builds a record key for tests.
func key(photoID string, slot int) store.RecordKey {
	return store.RecordKey{PhotoID: photoID, FaceSlot: slot}
}

// record builds a face record for tests.
func record(photoID string, slot int, vec []float32) store.FaceRecord {
	return store.FaceRecord{PhotoID: photoID, FaceSlot: slot, Embedding: vec}
}

// newTestIndex builds an index of the given kind or fails the test.
func newTestIndex(t *testing.T, kind Kind, records []store.FaceRecord) EventIndex {
	t.Helper()
	idx, err := New(kind, testDim, records)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", kind, err)
	}
	return idx
}

// forEachKind runs a subtest against both index implementations. They
// share one behavioral contract, so most tests exercise both.
func forEachKind(t *testing.T, fn func(t *testing.T, kind Kind)) {
	for _, kind := range []Kind{KindExact, KindHNSW} {
		t.Run(string(kind), func(t *testing.T) {
			fn(t, kind)
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New("fancy", testDim, nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewEmptyKindDefaultsToExact(t *testing.T) {
	idx, err := New("", testDim, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := idx.(*flatIndex); !ok {
		t.Errorf("empty kind built %T, want *flatIndex", idx)
	}
}

func TestIndexSelfMatch(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		vec := []float32{0.5, -0.2, 0.8, 0.1}
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, vec),
			record("p2", 0, []float32{-0.5, 0.2, -0.8, -0.1}),
		})

		matches, err := idx.Query(vec, 10, -1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) == 0 {
			t.Fatal("expected matches")
		}
		if matches[0].Key != key("p1", 0) {
			t.Errorf("top match = %v, want p1#0", matches[0].Key)
		}
		if math.Abs(matches[0].Score-1.0) > 1e-6 {
			t.Errorf("self-match score = %v, want 1.0", matches[0].Score)
		}
	})
}

func TestIndexOrderingAndTopK(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		// Vectors at decreasing similarity to the query (1, 0, 0, 0).
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("far", 0, []float32{0, 1, 0, 0}),
			record("best", 0, []float32{1, 0, 0, 0}),
			record("close", 0, []float32{1, 0.5, 0, 0}),
		})
		query := []float32{1, 0, 0, 0}

		all, err := idx.Query(query, 10, -1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("got %d matches, want 3", len(all))
		}
		wantOrder := []string{"best", "close", "far"}
		for i, want := range wantOrder {
			if all[i].Key.PhotoID != want {
				t.Errorf("match[%d] = %s, want %s", i, all[i].Key.PhotoID, want)
			}
		}
		for i := 1; i < len(all); i++ {
			if all[i].Score > all[i-1].Score {
				t.Errorf("scores not descending at %d: %v > %v", i, all[i].Score, all[i-1].Score)
			}
		}

		// A smaller topK is a prefix of the larger result.
		two, err := idx.Query(query, 2, -1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(two) != 2 {
			t.Fatalf("got %d matches, want 2", len(two))
		}
		for i := range two {
			if two[i].Key != all[i].Key {
				t.Errorf("topK=2 result[%d] = %v, want prefix of full result %v", i, two[i].Key, all[i].Key)
			}
		}
	})
}

func TestIndexThresholdFilter(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("hit", 0, []float32{1, 0, 0, 0}),
			record("miss", 0, []float32{0, 1, 0, 0}), // similarity 0
		})

		matches, err := idx.Query([]float32{1, 0, 0, 0}, 10, 0.5)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].Key.PhotoID != "hit" {
			t.Errorf("match = %s, want hit", matches[0].Key.PhotoID)
		}
	})
}

func TestIndexDimensionMismatch(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, nil)

		if err := idx.Add(key("p1", 0), []float32{1, 2}); err == nil {
			t.Error("Add with wrong dimension should fail")
		}
		if _, err := idx.Query([]float32{1, 2}, 10, 0); err == nil {
			t.Error("Query with wrong dimension should fail")
		}
	})
}

func TestIndexTopKZero(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, []float32{1, 0, 0, 0}),
		})
		matches, err := idx.Query([]float32{1, 0, 0, 0}, 0, 0)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("topK=0 returned %d matches, want 0", len(matches))
		}
	})
}

func TestIndexEmpty(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, nil)
		matches, err := idx.Query([]float32{1, 0, 0, 0}, 10, 0)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("empty index returned %d matches", len(matches))
		}
		if idx.Len() != 0 {
			t.Errorf("Len() = %d, want 0", idx.Len())
		}
	})
}

func TestIndexReplace(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, []float32{1, 0, 0, 0}),
		})

		// Replace with an orthogonal vector; the old one must not match.
		if err := idx.Add(key("p1", 0), []float32{0, 1, 0, 0}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if idx.Len() != 1 {
			t.Fatalf("Len() = %d after replace, want 1", idx.Len())
		}

		matches, err := idx.Query([]float32{0, 1, 0, 0}, 10, 0.9)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 1 || math.Abs(matches[0].Score-1.0) > 1e-6 {
			t.Fatalf("replaced vector should self-match, got %v", matches)
		}

		old, err := idx.Query([]float32{1, 0, 0, 0}, 10, 0.9)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(old) != 0 {
			t.Errorf("old vector still matches after replace: %v", old)
		}
	})
}

func TestIndexRemove(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, []float32{1, 0, 0, 0}),
			record("p1", 1, []float32{0, 1, 0, 0}),
			record("p2", 0, []float32{0, 0, 1, 0}),
		})

		idx.Remove(key("p1", 1))
		if idx.Len() != 2 {
			t.Fatalf("Len() = %d after Remove, want 2", idx.Len())
		}
		// Removing again is a no-op.
		idx.Remove(key("p1", 1))
		if idx.Len() != 2 {
			t.Fatalf("Len() = %d after double Remove, want 2", idx.Len())
		}

		matches, err := idx.Query([]float32{0, 1, 0, 0}, 10, 0.9)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("removed entry still matches: %v", matches)
		}
	})
}

func TestIndexRemovePhoto(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, []float32{1, 0, 0, 0}),
			record("p1", 1, []float32{0, 1, 0, 0}),
			record("p2", 0, []float32{0, 0, 1, 0}),
		})

		if n := idx.RemovePhoto("p1"); n != 2 {
			t.Errorf("RemovePhoto removed %d entries, want 2", n)
		}
		if idx.Len() != 1 {
			t.Errorf("Len() = %d, want 1", idx.Len())
		}
		if n := idx.RemovePhoto("absent"); n != 0 {
			t.Errorf("RemovePhoto(absent) removed %d entries, want 0", n)
		}

		matches, err := idx.Query([]float32{1, 0, 0, 0}, 10, -1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for _, m := range matches {
			if m.Key.PhotoID == "p1" {
				t.Errorf("p1 entry survived RemovePhoto: %v", m)
			}
		}
	})
}

func TestIndexTieBreakInsertionOrder(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		// Identical vectors score identically; insertion order decides.
		vec := []float32{1, 0, 0, 0}
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("first", 0, vec),
			record("second", 0, vec),
			record("third", 0, vec),
		})

		matches, err := idx.Query(vec, 10, 0.9)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(matches) != 3 {
			t.Fatalf("got %d matches, want 3", len(matches))
		}
		wantOrder := []string{"first", "second", "third"}
		for i, want := range wantOrder {
			if matches[i].Key.PhotoID != want {
				t.Errorf("match[%d] = %s, want %s", i, matches[i].Key.PhotoID, want)
			}
		}
	})
}

func TestIndexZeroNormQuery(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, []store.FaceRecord{
			record("p1", 0, []float32{1, 0, 0, 0}),
		})

		matches, err := idx.Query([]float32{0, 0, 0, 0}, 10, 0)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		// A zero query scores 0 against everything; included at minScore 0.
		if len(matches) != 1 || matches[0].Score != 0 {
			t.Errorf("zero-norm query got %v, want one match at score 0", matches)
		}

		filtered, err := idx.Query([]float32{0, 0, 0, 0}, 10, 0.1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(filtered) != 0 {
			t.Errorf("zero-norm query above threshold got %v, want none", filtered)
		}
	})
}

func TestIndexVersionBumps(t *testing.T) {
	forEachKind(t, func(t *testing.T, kind Kind) {
		idx := newTestIndex(t, kind, nil)
		v0 := idx.Version()

		if err := idx.Add(key("p1", 0), []float32{1, 0, 0, 0}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if idx.Version() <= v0 {
			t.Error("Version did not advance on Add")
		}

		v1 := idx.Version()
		idx.Remove(key("p1", 0))
		if idx.Version() <= v1 {
			t.Error("Version did not advance on Remove")
		}
	})
}

func TestIndexKindsAgree(t *testing.T) {
	// Both implementations must return the same result set for the same
	// data. HNSW is approximate, but at this size the graph search is
	// effectively exhaustive.
	records := []store.FaceRecord{
		record("a", 0, []float32{1, 0, 0, 0}),
		record("a", 1, []float32{0.9, 0.1, 0, 0}),
		record("b", 0, []float32{0, 1, 0, 0}),
		record("c", 0, []float32{0.5, 0.5, 0, 0}),
		record("d", 0, []float32{-1, 0, 0, 0}),
	}
	query := []float32{1, 0, 0, 0}

	exact := newTestIndex(t, KindExact, records)
	approx := newTestIndex(t, KindHNSW, records)

	exactMatches, err := exact.Query(query, 4, 0.1)
	if err != nil {
		t.Fatalf("exact Query failed: %v", err)
	}
	approxMatches, err := approx.Query(query, 4, 0.1)
	if err != nil {
		t.Fatalf("hnsw Query failed: %v", err)
	}

	if len(exactMatches) != len(approxMatches) {
		t.Fatalf("result sizes differ: exact %d, hnsw %d", len(exactMatches), len(approxMatches))
	}
	for i := range exactMatches {
		if exactMatches[i].Key != approxMatches[i].Key {
			t.Errorf("result[%d] keys differ: exact %v, hnsw %v", i, exactMatches[i].Key, approxMatches[i].Key)
		}
		if math.Abs(exactMatches[i].Score-approxMatches[i].Score) > 1e-6 {
			t.Errorf("result[%d] scores differ: exact %v, hnsw %v", i, exactMatches[i].Score, approxMatches[i].Score)
		}
	}
}
