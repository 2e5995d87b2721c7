package AI

import (
	"context"
	"errors"
	"fmt"
)

// LLMProvider represents different LLM providers
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOllama LLMProvider = "ollama"
	ProviderMock   LLMProvider = "mock"
)

// ErrRateLimited is returned when a backend answers with a 429-class status.
// Callers use it to trip the rate limiter's cooldown.
var ErrRateLimited = errors.New("llm backend rate limited")

// ErrUnavailable is returned for network failures and 5xx answers
var ErrUnavailable = errors.New("llm backend unavailable")

// LLMClient is the interface every text-generation backend implements.
// Backends are opaque text-in/text-out services; structure is imposed by the
// caller's prompt and response parsing.
type LLMClient interface {
	// CompleteSimple sends a single prompt and returns the raw text answer
	CompleteSimple(ctx context.Context, prompt string) (string, error)

	// GetProvider returns the provider type
	GetProvider() LLMProvider

	// GetDefaultModel returns the default model for this provider
	GetDefaultModel() string

	// ValidateConfig validates the client configuration
	ValidateConfig() error
}

// LLMClientConfig holds configuration for creating LLM clients
type LLMClientConfig struct {
	Provider    LLMProvider `json:"provider"`
	APIKey      string      `json:"api_key,omitempty"`
	APIKeyEnv   string      `json:"api_key_env,omitempty"`
	BaseURL     string      `json:"base_url,omitempty"` // for custom endpoints (Ollama, proxies)
	Model       string      `json:"model,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Timeout     int         `json:"timeout,omitempty"` // request timeout in seconds
}

// NewLLMClient creates a new LLM client based on the provider
func NewLLMClient(config LLMClientConfig) (LLMClient, error) {
	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(config)
	case ProviderOllama:
		return NewOllamaClient(config)
	case ProviderMock:
		return NewMockLLMClient(""), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
