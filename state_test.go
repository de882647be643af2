package signin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	signin "github.com/goliatone/go-signin"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, signin.CanTransition(signin.StateIdle, signin.StateValidating))
	assert.True(t, signin.CanTransition(signin.StateIdle, signin.StateSettled))
	assert.True(t, signin.CanTransition(signin.StateAuthenticating, signin.StateFallbackPending))
	assert.True(t, signin.CanTransition(signin.StateFallbackPending, signin.StateSettled))

	assert.False(t, signin.CanTransition(signin.StateIdle, signin.StateAuthenticating))
	assert.False(t, signin.CanTransition(signin.StateValidating, signin.StateFallbackPending))
	assert.False(t, signin.CanTransition(signin.StateSettled, signin.StateIdle))
	assert.False(t, signin.CanTransition(signin.StateFallbackPending, signin.StateAuthenticating))

	assert.True(t, signin.StateSettled.IsTerminal())
	assert.False(t, signin.StateFallbackPending.IsTerminal())
}

func TestTransitionsCarryAttemptSnapshots(t *testing.T) {
	backend := new(MockBackend)
	backend.On("SignIn", mock.Anything, mock.Anything, validEmail, validPassword).
		Return(nil, signin.NewAuthError(signin.CodeUserNotFound, "no user")).Once()

	fallback := new(MockFallback)
	fallback.On("Fallback", mock.Anything, validEmail, validPassword).Return(false, nil).Once()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recorder := &transitionRecorder{}
	form := newTestForm(backend).
		WithFallback(fallback.Fallback).
		WithClock(func() time.Time { return now }).
		WithObserver(recorder)

	form.Submit(context.Background(), signin.Credentials{Email: validEmail, Password: validPassword})

	transitions := recorder.All()
	require.Len(t, transitions, 4)

	assert.Equal(t, signin.StateIdle, transitions[0].From)
	assert.Equal(t, signin.StateValidating, transitions[1].From)
	assert.Equal(t, signin.StateAuthenticating, transitions[2].From)
	assert.Equal(t, signin.StateFallbackPending, transitions[3].From)

	for _, tr := range transitions {
		assert.Equal(t, now, tr.At)
	}

	settled := transitions[3]
	assert.Equal(t, signin.StateSettled, settled.To)
	assert.False(t, settled.Succeeded())
	assert.True(t, settled.Attempt.FallbackUsed)
	assert.Equal(t, "errors.wrongPassword", settled.Attempt.LastError)
	assert.Equal(t, signin.CodeUserNotFound, settled.Classification.Code)
}
