package testutils

import (
	"context"
	"sync"

	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

// MockBackend is a generation backend that echoes a canned reply and
// records every prompt it receives.
type MockBackend struct {
	mu sync.Mutex

	// Reply is returned as the completion text. Defaults to "ok".
	Reply string

	Models []string

	// HealthErr, ListErr and GenerateErr inject failures.
	HealthErr   error
	ListErr     error
	GenerateErr error

	Prompts []generation.Prompt
	Closed  bool
}

func NewMockBackend(models ...string) *MockBackend {
	return &MockBackend{Reply: "ok", Models: models}
}

func (m *MockBackend) Name() string     { return "mock" }
func (m *MockBackend) Endpoint() string { return "http://mock.invalid" }

func (m *MockBackend) CheckHealth(context.Context) error { return m.HealthErr }

func (m *MockBackend) ListModels(context.Context) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Models, nil
}

func (m *MockBackend) Generate(_ context.Context, p generation.Prompt) (*generation.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, p)
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	return &generation.Completion{
		Text:             m.Reply,
		Model:            p.Model,
		PromptTokens:     10,
		CompletionTokens: 5,
	}, nil
}

func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LastPrompt returns the most recent prompt, or the zero Prompt.
func (m *MockBackend) LastPrompt() generation.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return generation.Prompt{}
	}
	return m.Prompts[len(m.Prompts)-1]
}

var _ generation.Backend = (*MockBackend)(nil)
