package store

import (
	"fmt"
	"time"
)

// RecordKey identifies a single face embedding within an event.
// A photo may contain several detected faces, one per slot.
type RecordKey struct {
	PhotoID  string
	FaceSlot int
}

// String returns the wire form of the key, "photoID#slot".
func (k RecordKey) String() string {
	return fmt.Sprintf("%s#%d", k.PhotoID, k.FaceSlot)
}

// FaceRecord is one stored face embedding with its provenance.
type FaceRecord struct {
	EventID   string
	PhotoID   string
	FaceSlot  int
	Embedding []float32
	DetScore  float64
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	SourceRef string    // URL or object-storage reference of the photo
	CreatedAt time.Time
}

// Key returns the record's key within its event.
func (r *FaceRecord) Key() RecordKey {
	return RecordKey{PhotoID: r.PhotoID, FaceSlot: r.FaceSlot}
}
