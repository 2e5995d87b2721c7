package storage

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig holds configuration for the in-process backend
type ChromemConfig struct {
	CollectionName    string `json:"collection_name"`
	EnablePersistence bool   `json:"enable_persistence"`
	PersistencePath   string `json:"persistence_path,omitempty"`
	EnableCompression bool   `json:"enable_compression"`
}

// ChromemBackend implements VectorBackend with chromem-go: fast startup,
// single-process, no network dependency. The default for development and
// small deployments.
type ChromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemBackend creates a new in-process vector backend
func NewChromemBackend(config ChromemConfig, embedder EmbeddingService) (*ChromemBackend, error) {
	if config.CollectionName == "" {
		config.CollectionName = "locations"
	}

	var db *chromem.DB
	var err error
	if config.EnablePersistence && config.PersistencePath != "" {
		db, err = chromem.NewPersistentDB(config.PersistencePath, config.EnableCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(config.CollectionName, nil, embedder.ToChromemFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &ChromemBackend{
		db:         db,
		collection: collection,
	}, nil
}

// Upsert stores or replaces points by id
func (cb *ChromemBackend) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		content := p.Payload["name"]
		if content == "" {
			content = p.ID
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   content,
			Metadata:  p.Payload,
			Embedding: p.Vector,
		}
	}

	concurrency := 1
	if len(docs) > 10 {
		concurrency = 4
	}
	if err := cb.collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

// Search returns the topK nearest neighbours by cosine similarity
func (cb *ChromemBackend) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	// chromem rejects nResults above the collection size
	if count := cb.collection.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := cb.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:      r.ID,
			Score:   float64(r.Similarity),
			Payload: r.Metadata,
		}
	}
	return out, nil
}

// Count returns the number of indexed points
func (cb *ChromemBackend) Count(ctx context.Context) (int, error) {
	return cb.collection.Count(), nil
}

// Close releases backend resources (no-op for the in-process store)
func (cb *ChromemBackend) Close() error {
	return nil
}
