package index

// HNSW parameters for face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchMultiplier is the factor to request more candidates from
	// the graph so enough survive deletion filtering and score cutoff.
	hnswSearchMultiplier = 3

	// hnswMinSearchK is the floor on the candidate pool size.
	hnswMinSearchK = 100
)
