package signin

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SUBMISSION_TRANSITION"

// ErrInvalidTransition is reported when the form tries a move the submission
// state machine does not allow.
var ErrInvalidTransition = goerrors.New("invalid submission state transition", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeInternal)

// SubmissionState is the lifecycle of one form submission.
type SubmissionState string

const (
	StateIdle            SubmissionState = "idle"
	StateValidating      SubmissionState = "validating"
	StateAuthenticating  SubmissionState = "authenticating"
	StateFallbackPending SubmissionState = "fallback_pending"
	StateSettled         SubmissionState = "settled"
)

// IsTerminal reports whether no further transition can follow s.
func (s SubmissionState) IsTerminal() bool {
	return s == StateSettled
}

var submissionTransitions = map[SubmissionState]map[SubmissionState]struct{}{
	StateIdle: {
		StateValidating: {},
		StateSettled:    {},
	},
	StateValidating: {
		StateAuthenticating: {},
		StateSettled:        {},
	},
	StateAuthenticating: {
		StateFallbackPending: {},
		StateSettled:         {},
	},
	StateFallbackPending: {
		StateSettled: {},
	},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to SubmissionState) bool {
	next, ok := submissionTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Transition is published to observers on every state change. Attempt is a
// snapshot taken after the change.
type Transition struct {
	From    SubmissionState  `json:"from"`
	To      SubmissionState  `json:"to"`
	Attempt AuthAttemptState `json:"attempt"`
	// Classification is set when To is StateSettled.
	Classification ErrorClassification `json:"classification,omitempty"`
	// StartedAt is when the submission left StateIdle.
	StartedAt time.Time `json:"started_at"`
	At        time.Time `json:"at"`
}

// Elapsed is the time spent in the submission up to this transition.
func (t Transition) Elapsed() time.Duration {
	if t.StartedAt.IsZero() || t.At.Before(t.StartedAt) {
		return 0
	}
	return t.At.Sub(t.StartedAt)
}

// Succeeded is true for a settled transition without error.
func (t Transition) Succeeded() bool {
	return t.To == StateSettled && t.Classification.Kind == ErrorKindNone
}

// Observer receives submission transitions. Observers run synchronously on the
// submitting goroutine and must not block.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, t Transition)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	if f == nil {
		return
	}
	f(ctx, t)
}

// submission drives one pass through the state machine.
type submission struct {
	state   SubmissionState
	attempt *AuthAttemptState
	started time.Time
	now     func() time.Time
	publish func(ctx context.Context, t Transition)
	logger  Logger
}

func (s *submission) moveTo(ctx context.Context, to SubmissionState) {
	s.move(ctx, to, ErrorClassification{})
}

func (s *submission) settle(ctx context.Context, c ErrorClassification) {
	s.move(ctx, StateSettled, c)
}

func (s *submission) move(ctx context.Context, to SubmissionState, c ErrorClassification) {
	from := s.state
	if !CanTransition(from, to) {
		s.logger.Error("submission transition rejected", "from", from, "to", to, "error", ErrInvalidTransition)
		return
	}

	s.state = to
	if s.publish != nil {
		s.publish(ctx, Transition{
			From:           from,
			To:             to,
			Attempt:        *s.attempt,
			Classification: c,
			StartedAt:      s.started,
			At:             s.now(),
		})
	}
}
