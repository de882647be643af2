package signin_test

import (
	"context"
	"sync"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements signin.IdentityBackend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SignIn(ctx context.Context, cfg *signin.Config, email, password string) (*signin.Session, error) {
	args := m.Called(ctx, cfg, email, password)
	session, _ := args.Get(0).(*signin.Session)
	return session, args.Error(1)
}

// MockFallback provides a signin.FallbackFunc through its Fallback method
type MockFallback struct {
	mock.Mock
}

func (m *MockFallback) Fallback(ctx context.Context, email, password string) (bool, error) {
	args := m.Called(ctx, email, password)
	return args.Bool(0), args.Error(1)
}

// MockConfigSource implements signin.ConfigSource
type MockConfigSource struct {
	mock.Mock
}

func (m *MockConfigSource) Config(ctx context.Context) (*signin.Config, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*signin.Config)
	return cfg, args.Error(1)
}

// transitionRecorder is an Observer that keeps every transition.
type transitionRecorder struct {
	mu          sync.Mutex
	transitions []signin.Transition
}

func (r *transitionRecorder) OnTransition(_ context.Context, t signin.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *transitionRecorder) States() []signin.SubmissionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]signin.SubmissionState, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

func (r *transitionRecorder) All() []signin.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signin.Transition(nil), r.transitions...)
}

// nopLogger silences test output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// countingSchema wraps the default schema and counts how often it is built.
type countingSchema struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSchema) Factory() signin.SchemaFactory {
	return func(ctx context.Context, cfg *signin.Config, t signin.Translator) signin.Schema {
		c.mu.Lock()
		c.calls++
		c.mu.Unlock()
		return signin.EmailFormSchema(ctx, cfg, t)
	}
}

func (c *countingSchema) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
