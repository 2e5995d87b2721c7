package storage

import "context"

// Point is one entry in the vector index
type Point struct {
	ID      string            `json:"id"`
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload,omitempty"`
}

// SearchResult is one scored nearest neighbour
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float64           `json:"score"` // cosine similarity, 0-1
	Payload map[string]string `json:"payload,omitempty"`
}

// VectorBackend is the interface the location resolver depends on. It is
// satisfied by an in-process index (chromem) and a networked vector database
// (Qdrant); callers never see which one is active.
type VectorBackend interface {
	// Upsert stores or replaces points by id
	Upsert(ctx context.Context, points []Point) error

	// Search returns the topK nearest neighbours by cosine similarity,
	// highest score first
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)

	// Count returns the number of indexed points
	Count(ctx context.Context) (int, error)

	// Close releases backend resources
	Close() error
}
