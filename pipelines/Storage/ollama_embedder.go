package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/philippgille/chromem-go"
)

// OllamaEmbedder computes embeddings through a locally-hosted Ollama server
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama-backed embedding service
func NewOllamaEmbedder(config EmbeddingConfig) (*OllamaEmbedder, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := config.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := config.Dimensions
	if dims == 0 {
		dims = 768
	}
	return &OllamaEmbedder{
		baseURL:    baseURL,
		model:      model,
		dimensions: dims,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EmbedText creates an embedding for a single text
func (o *OllamaEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, truncateBody(body, 256))
	}

	var respBody ollamaEmbedResponse
	if err := json.Unmarshal(body, &respBody); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}
	if len(respBody.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}

	out := make([]float32, len(respBody.Embedding))
	for i, v := range respBody.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedTexts creates embeddings for multiple texts sequentially. Ollama's
// embeddings endpoint is single-prompt; batching happens at the caller.
func (o *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := o.EmbedText(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		out[i] = emb
	}
	return out, nil
}

// GetDimensions returns the dimensionality of embeddings
func (o *OllamaEmbedder) GetDimensions() int {
	return o.dimensions
}

// GetProvider returns the provider name
func (o *OllamaEmbedder) GetProvider() EmbeddingProvider {
	return EmbeddingProviderOllama
}

// ToChromemFunc converts to a chromem-go EmbeddingFunc
func (o *OllamaEmbedder) ToChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return o.EmbedText(ctx, text)
	}
}

func truncateBody(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
