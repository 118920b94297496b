package mock

import (
	"context"
	"sync"

	"github.com/mavalente92/debatelens/internal/ai"
	"github.com/mavalente92/debatelens/pkg/models"
)

// MockClient satisfies models.ReasoningClient for testing.
type MockClient struct {
	Name_        string
	CompleteFunc func(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Call records one Complete invocation.
type Call struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

func (m *MockClient) Name() string { return m.Name_ }

func (m *MockClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Model: model, SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, model, systemPrompt, userPrompt)
	}
	return "", nil
}

// Calls returns a copy of all recorded invocations.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

const defaultSpeakerJSON = `{
  "scores": {
    "technical_rigor": 7.0,
    "data_usage": 6.5,
    "communication_style": 8.0,
    "focus": 7.5,
    "practical_orientation": 6.0,
    "accessibility": 7.0
  },
  "explanations": {
    "technical_rigor": "Mock explanation",
    "data_usage": "Mock explanation",
    "communication_style": "Mock explanation",
    "focus": "Mock explanation",
    "practical_orientation": "Mock explanation",
    "accessibility": "Mock explanation"
  },
  "highlights": ["Mock highlight"],
  "improvements": ["Mock improvement"],
  "overall_assessment": "Mock overall assessment"
}`

// NewMockClient returns a MockClient that answers every prompt with a
// well-formed speaker-analysis payload.
func NewMockClient() *MockClient {
	return &MockClient{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return defaultSpeakerJSON, nil
		},
	}
}

// NewFailingClient returns a MockClient that always returns the given error.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutClient returns a MockClient that blocks until context is cancelled.
func NewTimeoutClient() *MockClient {
	return &MockClient{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ai.ErrProviderUnavailable
		},
	}
}

// Compile-time check that MockClient implements ReasoningClient.
var _ models.ReasoningClient = (*MockClient)(nil)
