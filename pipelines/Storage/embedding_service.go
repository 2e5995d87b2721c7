package storage

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// EmbeddingProvider represents different embedding providers
type EmbeddingProvider string

const (
	EmbeddingProviderHash   EmbeddingProvider = "hash"
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
)

// EmbeddingConfig holds configuration for embedding services
type EmbeddingConfig struct {
	Provider   EmbeddingProvider `json:"provider"`
	BaseURL    string            `json:"base_url,omitempty"`
	Model      string            `json:"model,omitempty"`
	Dimensions int               `json:"dimensions,omitempty"`
}

// EmbeddingService provides a unified interface for embedding providers.
// The gazetteer index and the resolver must share one instance so query
// vectors live in the same space as indexed vectors.
type EmbeddingService interface {
	// EmbedText creates an embedding for a single text
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts creates embeddings for multiple texts
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// GetDimensions returns the dimensionality of embeddings
	GetDimensions() int

	// GetProvider returns the provider name
	GetProvider() EmbeddingProvider

	// ToChromemFunc converts to a chromem-go EmbeddingFunc
	ToChromemFunc() chromem.EmbeddingFunc
}

// NewEmbeddingService creates an embedding service from configuration
func NewEmbeddingService(config EmbeddingConfig) (EmbeddingService, error) {
	switch config.Provider {
	case EmbeddingProviderHash, "":
		dims := config.Dimensions
		if dims == 0 {
			dims = 256
		}
		return NewHashEmbedder(dims), nil
	case EmbeddingProviderOllama:
		return NewOllamaEmbedder(config)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
}
