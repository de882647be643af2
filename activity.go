package signin

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess     ActivityEventType = "signin.success"
	ActivityEventSignInFailure     ActivityEventType = "signin.failure"
	ActivityEventFallbackAttempted ActivityEventType = "signin.fallback.attempted"
)

// ActivityEvent captures audit-friendly information about a submission.
type ActivityEvent struct {
	EventType  ActivityEventType
	Email      string
	UserID     string
	Kind       ErrorKind
	Code       string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
