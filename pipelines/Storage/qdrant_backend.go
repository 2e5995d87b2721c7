package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Qdrant point ids must be UUIDs or unsigned integers; gazetteer entry ids
// are mapped through this deterministic v5 namespace and kept in the payload.
var qdrantPointNamespace = uuid.MustParse("7c9e4b21-55aa-4c83-9d0e-3f6b1a8cd214")

const payloadEntryIDKey = "entry_id"

// QdrantConfig holds connection settings for the networked backend
type QdrantConfig struct {
	URL        string        `json:"url"`
	APIKey     string        `json:"api_key,omitempty"`
	Collection string        `json:"collection"`
	Dimensions int           `json:"dimensions"`
	Timeout    time.Duration `json:"-"`
}

// QdrantBackend implements VectorBackend over Qdrant's HTTP API: a shared,
// updatable index for multi-process deployments. Searches follow the same
// timeout discipline as LM calls but never touch the generative-model rate
// limiter.
type QdrantBackend struct {
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchItem struct {
	ID      json.RawMessage   `json:"id"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload"`
}

// NewQdrantBackend creates a networked vector backend and ensures the
// collection exists with a cosine-distance vector schema
func NewQdrantBackend(ctx context.Context, config QdrantConfig) (*QdrantBackend, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if config.Collection == "" {
		config.Collection = "civiclens_locations"
	}
	if config.Dimensions < 1 {
		return nil, fmt.Errorf("qdrant vector dimensions must be set")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	b := &QdrantBackend{
		baseURL:    strings.TrimRight(config.URL, "/"),
		apiKey:     config.APIKey,
		collection: config.Collection,
		dimensions: config.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
	if err := b.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *QdrantBackend) ensureCollection(ctx context.Context) error {
	status, _, err := b.do(ctx, http.MethodGet, "/collections/"+b.collection, nil)
	if err != nil {
		return fmt.Errorf("failed to check qdrant collection: %w", err)
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d checking qdrant collection %q", status, b.collection)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     b.dimensions,
			"distance": "Cosine",
		},
	}
	status, respBody, err := b.do(ctx, http.MethodPut, "/collections/"+b.collection, body)
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant collection create failed with status %d: %s", status, respBody)
	}
	return nil
}

// Upsert stores or replaces points by id
func (b *QdrantBackend) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qPoints := make([]map[string]any, len(points))
	for i, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("point %d has empty id", i)
		}
		payload := make(map[string]string, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[payloadEntryIDKey] = p.ID
		qPoints[i] = map[string]any{
			"id":      uuid.NewSHA1(qdrantPointNamespace, []byte(p.ID)).String(),
			"vector":  p.Vector,
			"payload": payload,
		}
	}

	status, respBody, err := b.do(ctx, http.MethodPut, "/collections/"+b.collection+"/points?wait=true", map[string]any{
		"points": qPoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant upsert failed with status %d: %s", status, respBody)
	}
	return nil
}

// Search returns the topK nearest neighbours by cosine similarity
func (b *QdrantBackend) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	status, respBody, err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/search", map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("qdrant search failed with status %d: %s", status, respBody)
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse qdrant search response: %w", err)
	}
	var items []qdrantSearchItem
	if err := json.Unmarshal(envelope.Result, &items); err != nil {
		return nil, fmt.Errorf("failed to parse qdrant search result: %w", err)
	}

	out := make([]SearchResult, 0, len(items))
	for _, item := range items {
		id := item.Payload[payloadEntryIDKey]
		if id == "" {
			// point written by something else; fall back to the raw id
			id = strings.Trim(string(item.ID), `"`)
		}
		out = append(out, SearchResult{
			ID:      id,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return out, nil
}

// Count returns the number of indexed points
func (b *QdrantBackend) Count(ctx context.Context) (int, error) {
	status, respBody, err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/count", map[string]any{
		"exact": true,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("qdrant count failed with status %d: %s", status, respBody)
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return 0, fmt.Errorf("failed to parse qdrant count response: %w", err)
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return 0, fmt.Errorf("failed to parse qdrant count result: %w", err)
	}
	return result.Count, nil
}

// Close releases backend resources
func (b *QdrantBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *QdrantBackend) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("api-key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
