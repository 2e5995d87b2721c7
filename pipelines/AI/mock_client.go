package AI

import "context"

// MockLLMClient is a simple canned-response client for testing
type MockLLMClient struct {
	provider LLMProvider
	model    string
	response string
	err      error
}

// NewMockLLMClient creates a mock LLM client returning a fixed response
func NewMockLLMClient(response string) *MockLLMClient {
	return &MockLLMClient{
		provider: ProviderMock,
		model:    "mock-model",
		response: response,
	}
}

// NewFailingMockLLMClient creates a mock client that always returns err
func NewFailingMockLLMClient(err error) *MockLLMClient {
	return &MockLLMClient{
		provider: ProviderMock,
		model:    "mock-model",
		err:      err,
	}
}

func (m *MockLLMClient) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.response, nil
}

func (m *MockLLMClient) GetProvider() LLMProvider {
	return m.provider
}

func (m *MockLLMClient) GetDefaultModel() string {
	return m.model
}

func (m *MockLLMClient) ValidateConfig() error {
	return nil
}
