package AI

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient implements LLMClient for a locally-hosted Ollama server
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// ollamaRequestBody represents the request body for /api/generate
type ollamaRequestBody struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Format  string `json:"format,omitempty"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

// ollamaResponseBody represents the non-streaming response from /api/generate
type ollamaResponseBody struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(config LLMClientConfig) (LLMClient, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := config.Model
	if model == "" {
		model = "llama3.1:8b"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &OllamaClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CompleteSimple sends a single prompt to Ollama and returns the text answer
func (c *OllamaClient) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequestBody{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}
	reqBody.Options.Temperature = c.temperature
	reqBody.Options.NumPredict = c.maxTokens

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var respBody ollamaResponseBody
	if err := json.Unmarshal(body, &respBody); err != nil {
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	return respBody.Response, nil
}

// GetProvider returns the provider type
func (c *OllamaClient) GetProvider() LLMProvider {
	return ProviderOllama
}

// GetDefaultModel returns the configured model
func (c *OllamaClient) GetDefaultModel() string {
	return c.model
}

// ValidateConfig validates the client configuration
func (c *OllamaClient) ValidateConfig() error {
	if c.baseURL == "" {
		return fmt.Errorf("Ollama base URL is required")
	}
	if c.model == "" {
		return fmt.Errorf("Ollama model is required")
	}
	return nil
}
