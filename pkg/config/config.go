package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// VectorBackendType selects the vector-index implementation
type VectorBackendType string

const (
	VectorBackendInProcess VectorBackendType = "in_process"
	VectorBackendNetworked VectorBackendType = "networked"
)

// Config holds the application configuration
type Config struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	DatabasePath  string `yaml:"database_path" json:"database_path"`
	GazetteerPath string `yaml:"gazetteer_path" json:"gazetteer_path"`

	// Per-provider requests/minute caps, applied to backends that don't set
	// their own rpm
	GeminiRPM int `yaml:"gemini_rpm" json:"gemini_rpm"`
	OllamaRPM int `yaml:"ollama_rpm" json:"ollama_rpm"`

	ConsensusTimeout int `yaml:"consensus_timeout" json:"consensus_timeout"` // seconds, per post
	ExtractorTimeout int `yaml:"extractor_timeout" json:"extractor_timeout"` // seconds, per LM call
	PermitTimeout    int `yaml:"permit_timeout" json:"permit_timeout"`       // seconds, rate-limit wait

	MinLocationScore float64 `yaml:"min_location_score" json:"min_location_score"`
	TopK             int     `yaml:"top_k" json:"top_k"`

	VectorBackend VectorBackendType `yaml:"vector_backend" json:"vector_backend"`
	Qdrant        QdrantConfig      `yaml:"qdrant" json:"qdrant"`
	Embedding     EmbeddingConfig   `yaml:"embedding" json:"embedding"`

	Backends []BackendConfig `yaml:"backends" json:"backends"`

	Workers       int    `yaml:"workers" json:"workers"`
	BatchSize     int    `yaml:"batch_size" json:"batch_size"`
	ParseSchedule string `yaml:"parse_schedule" json:"parse_schedule"` // cron spec, empty = one-shot
}

// BackendConfig describes one generative-model backend. Backends are
// constructed uniformly from this list at startup; there is no per-provider
// wiring anywhere else.
type BackendConfig struct {
	Name      string `yaml:"name" json:"name"` // llm_primary | llm_secondary
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	RPM       int    `yaml:"rpm" json:"rpm"`
	Burst     int    `yaml:"burst" json:"burst"`
	Timeout   int    `yaml:"timeout" json:"timeout"` // seconds
}

// QdrantConfig holds connection settings for the networked vector backend
type QdrantConfig struct {
	URL        string `yaml:"url" json:"url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	Collection string `yaml:"collection" json:"collection"`
}

// EmbeddingConfig selects the embedding service shared by the gazetteer
// index and the resolver
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // hash | ollama
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

// Default returns the built-in configuration used when no file is supplied
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		DatabasePath:     "civiclens.db",
		GazetteerPath:    "data/gazetteer.csv",
		GeminiRPM:        15,
		OllamaRPM:        60,
		ConsensusTimeout: 20,
		ExtractorTimeout: 8,
		PermitTimeout:    2,
		MinLocationScore: 0.7,
		TopK:             5,
		VectorBackend:    VectorBackendInProcess,
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 256,
		},
		Backends: []BackendConfig{
			{Name: "llm_primary", Provider: "gemini", APIKeyEnv: "GEMINI_API_KEY"},
			{Name: "llm_secondary", Provider: "ollama"},
		},
		Workers:   4,
		BatchSize: 50,
	}
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyBackendDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
func (c *Config) applyEnvOverrides() {
	c.DatabasePath = getEnv("CIVICLENS_DB_PATH", c.DatabasePath)
	c.GazetteerPath = getEnv("CIVICLENS_GAZETTEER_PATH", c.GazetteerPath)
	c.LogLevel = getEnv("CIVICLENS_LOG_LEVEL", c.LogLevel)
	c.Qdrant.URL = getEnv("CIVICLENS_QDRANT_URL", c.Qdrant.URL)
	c.Qdrant.APIKey = getEnv("CIVICLENS_QDRANT_API_KEY", c.Qdrant.APIKey)
	c.GeminiRPM = getEnvAsInt("CIVICLENS_GEMINI_RPM", c.GeminiRPM)
	c.OllamaRPM = getEnvAsInt("CIVICLENS_OLLAMA_RPM", c.OllamaRPM)
	c.Workers = getEnvAsInt("CIVICLENS_WORKERS", c.Workers)
}

// applyBackendDefaults fills per-backend rate limits from the provider-level
// caps and derives burst capacity where unset
func (c *Config) applyBackendDefaults() {
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.RPM == 0 {
			switch b.Provider {
			case "gemini":
				b.RPM = c.GeminiRPM
			case "ollama":
				b.RPM = c.OllamaRPM
			}
		}
		if b.Burst == 0 {
			b.Burst = b.RPM / 6
			if b.Burst < 1 {
				b.Burst = 1
			}
		}
		if b.Timeout == 0 {
			b.Timeout = c.ExtractorTimeout
		}
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.MinLocationScore < 0 || c.MinLocationScore > 1 {
		return fmt.Errorf("min_location_score must be in [0,1], got %v", c.MinLocationScore)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.ConsensusTimeout < 1 {
		return fmt.Errorf("consensus_timeout must be >= 1 second, got %d", c.ConsensusTimeout)
	}
	switch c.VectorBackend {
	case VectorBackendInProcess:
	case VectorBackendNetworked:
		if c.Qdrant.URL == "" {
			return fmt.Errorf("vector_backend is %q but qdrant.url is not set", c.VectorBackend)
		}
	default:
		return fmt.Errorf("unknown vector_backend: %q", c.VectorBackend)
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend with provider %q has no name", b.Provider)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name: %q", b.Name)
		}
		seen[b.Name] = true
		if b.RPM < 1 {
			return fmt.Errorf("backend %q has no requests/minute cap", b.Name)
		}
	}
	return nil
}

// ConsensusTimeoutDuration returns the per-post deadline
func (c *Config) ConsensusTimeoutDuration() time.Duration {
	return time.Duration(c.ConsensusTimeout) * time.Second
}

// PermitTimeoutDuration returns how long an extractor waits for a rate permit
func (c *Config) PermitTimeoutDuration() time.Duration {
	return time.Duration(c.PermitTimeout) * time.Second
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
