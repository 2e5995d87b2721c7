package storage

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/philippgille/chromem-go"
)

// HashEmbedder is a deterministic offline embedder: the same text always maps
// to the same unit vector, texts sharing character n-grams land near each
// other. Suitable for development, tests and deployments without an embedding
// model; not a substitute for a real semantic model.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder with the given dimensionality
func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{dimensions: dimensions}
}

// EmbedText creates a deterministic embedding for a single text
func (h *HashEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

// EmbedTexts creates deterministic embeddings for multiple texts
func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

// GetDimensions returns the dimensionality of embeddings
func (h *HashEmbedder) GetDimensions() int {
	return h.dimensions
}

// GetProvider returns the provider name
func (h *HashEmbedder) GetProvider() EmbeddingProvider {
	return EmbeddingProviderHash
}

// ToChromemFunc converts to a chromem-go EmbeddingFunc
func (h *HashEmbedder) ToChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return h.embed(text), nil
	}
}

// embed sums seeded random vectors for the text's rune trigrams so that
// overlapping spellings produce nearby vectors, then normalizes to unit length
func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float64, h.dimensions)
	for _, gram := range runeTrigrams(text) {
		hasher := fnv.New64a()
		hasher.Write([]byte(gram))
		rng := rand.New(rand.NewSource(int64(hasher.Sum64())))
		for i := range vec {
			vec[i] += rng.Float64()*2 - 1
		}
	}

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	out := make([]float32, h.dimensions)
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// runeTrigrams returns overlapping rune trigrams with boundary padding.
// Short inputs degrade to the padded whole string.
func runeTrigrams(text string) []string {
	runes := []rune("^" + text + "$")
	if len(runes) <= 3 {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}
