package storage

import (
	"context"
	"fmt"
)

// BackendType represents the type of vector backend
type BackendType string

const (
	BackendTypeInProcess BackendType = "in_process"
	BackendTypeNetworked BackendType = "networked"
)

// BackendConfig represents the configuration for vector backends
type BackendConfig struct {
	Type BackendType `json:"type"`

	Chromem ChromemConfig `json:"chromem,omitempty"`
	Qdrant  QdrantConfig  `json:"qdrant,omitempty"`
}

// NewVectorBackend creates a vector backend based on the configuration.
// The resolver and gazetteer index only ever see the VectorBackend interface.
func NewVectorBackend(ctx context.Context, config BackendConfig, embedder EmbeddingService) (VectorBackend, error) {
	switch config.Type {
	case BackendTypeInProcess, "":
		return NewChromemBackend(config.Chromem, embedder)
	case BackendTypeNetworked:
		cfg := config.Qdrant
		if cfg.Dimensions == 0 {
			cfg.Dimensions = embedder.GetDimensions()
		}
		return NewQdrantBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown vector backend type: %s", config.Type)
	}
}
