package llm

import (
	"context"
	"sync"
)

// MockCall records one Generate invocation.
type MockCall struct {
	SystemPrompt string
	Messages     []Message
	Phase        string
}

// MockGenerator is a configurable Generator for tests.
//
// Resolution order per call: GenerateFunc if set; otherwise the next entry
// of Responses (the last entry repeats once exhausted); otherwise Err.
// Safe for concurrent use.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error)

	// Responses are returned in order as result content.
	Responses []string

	// Err is returned when neither GenerateFunc nor Responses is set.
	Err error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu    sync.Mutex
	calls []MockCall
}

// NewMockGenerator returns a mock that answers with responses in order.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{Responses: responses}
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error) {
	m.mu.Lock()
	phase, _ := GetContext(ctx)[ContextKeyPhase].(string)
	idx := len(m.calls)
	m.calls = append(m.calls, MockCall{
		SystemPrompt: systemPrompt,
		Messages:     append([]Message(nil), messages...),
		Phase:        phase,
	})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, systemPrompt, messages)
	}
	if len(m.Responses) > 0 {
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		return &GenerateResult{Content: m.Responses[idx]}, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &GenerateResult{}, nil
}

// Model implements Generator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Calls returns a copy of the recorded calls.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// CallsInPhase counts calls made with the given phase in their call context.
func (m *MockGenerator) CallsInPhase(phase string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Phase == phase {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Generator = (*MockGenerator)(nil)
