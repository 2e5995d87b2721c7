package AI

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func geminiAnswer(text string) string {
	resp := geminiResponseBody{}
	resp.Candidates = make([]struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	}, 1)
	resp.Candidates[0].Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGeminiCompleteSimple(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("api key = %q, want test-key", key)
		}
		var req geminiRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Errorf("response mime = %q, want application/json", req.GenerationConfig.ResponseMIMEType)
		}
		w.Write([]byte(geminiAnswer(`{"event_type":"rally"}`)))
	}))
	defer server.Close()

	client, err := NewGeminiClient(LLMClientConfig{
		Provider: ProviderGemini,
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Model:    "gemini-2.0-flash",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer, err := client.CompleteSimple(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != `{"event_type":"rally"}` {
		t.Errorf("answer = %q", answer)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGeminiErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client, err := NewGeminiClient(LLMClientConfig{APIKey: "k", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err = client.CompleteSimple(context.Background(), "x")
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewGeminiClient(LLMClientConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestGeminiReadsKeyFromEnv(t *testing.T) {
	t.Setenv("CUSTOM_KEY_ENV", "env-key")
	client, err := NewGeminiClient(LLMClientConfig{APIKeyEnv: "CUSTOM_KEY_ENV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.ValidateConfig(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaCompleteSimple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req ollamaRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("streaming must be disabled")
		}
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		json.NewEncoder(w).Encode(ollamaResponseBody{
			Model:    req.Model,
			Response: `{"event_type":"meeting"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(LLMClientConfig{BaseURL: server.URL, Model: "llama3.1:8b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answer, err := client.CompleteSimple(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != `{"event_type":"meeting"}` {
		t.Errorf("answer = %q", answer)
	}
}

func TestOllamaUnreachableIsUnavailable(t *testing.T) {
	client, err := NewOllamaClient(LLMClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = client.CompleteSimple(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestNewLLMClientFactory(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		client, err := NewLLMClient(LLMClientConfig{Provider: ProviderMock})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.GetProvider() != ProviderMock {
			t.Errorf("provider = %s", client.GetProvider())
		}
	})
	t.Run("unknown", func(t *testing.T) {
		if _, err := NewLLMClient(LLMClientConfig{Provider: "watson"}); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}
