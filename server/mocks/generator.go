package mocks

import (
	"context"
	"sync"
)

// MockGenerator implements a generation provider for tests without making
// API calls. Prompts are recorded so tests can assert on what was sent.
//
// Example usage:
//
//	gen := NewMockGenerator(func(ctx context.Context, prompt string) (string, error) {
//	    return "Question 1: ... | A | B | C | D | Correct: A | Explanation: ...", nil
//	})
type MockGenerator struct {
	GenerateFunc func(context.Context, string) (string, error)
	ProviderName string

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a MockGenerator. If generateFunc is nil, Generate
// returns an empty string with no error.
func NewMockGenerator(generateFunc func(context.Context, string) (string, error)) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: generateFunc,
		ProviderName: "mock",
	}
}

// NewStaticGenerator returns a generator that always replies with reply.
func NewStaticGenerator(reply string) *MockGenerator {
	return NewMockGenerator(func(context.Context, string) (string, error) {
		return reply, nil
	})
}

// Generate records prompt and delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc == nil {
		return "", nil
	}
	return m.GenerateFunc(ctx, prompt)
}

// Name returns the provider name reported by the mock.
func (m *MockGenerator) Name() string {
	return m.ProviderName
}

// Prompts returns every prompt received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Generate calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
