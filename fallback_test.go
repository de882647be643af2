package signin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	signin "github.com/goliatone/go-signin"
)

func TestFallbackCoordinatorRunsOncePerAttempt(t *testing.T) {
	backend := new(MockBackend)
	backend.On("SignIn", mock.Anything, mock.Anything, validEmail, validPassword).
		Return(&signin.Session{UserID: "u-1"}, nil).Once()

	authErr := signin.NewAuthError(signin.CodeUserNotFound, "no user")
	state := signin.NewAuthAttemptState()
	creds := signin.Credentials{Email: validEmail, Password: validPassword}

	var coordinator *signin.FallbackCoordinator
	calls := 0
	reentered := true
	coordinator = signin.NewFallbackCoordinator(backend, func(ctx context.Context, email, password string) (bool, error) {
		calls++
		_, reentered = coordinator.TryFallback(ctx, nil, creds, authErr, state)
		return true, nil
	}, nopLogger{})

	session, ok := coordinator.TryFallback(context.Background(), nil, creds, authErr, state)
	require.True(t, ok)
	require.NotNil(t, session)

	assert.Equal(t, 1, calls)
	assert.False(t, reentered)
	assert.True(t, state.FallbackUsed)

	_, again := coordinator.TryFallback(context.Background(), nil, creds, authErr, state)
	assert.False(t, again)
	assert.Equal(t, 1, calls)
	backend.AssertNumberOfCalls(t, "SignIn", 1)
}

func TestFallbackCoordinatorEligibility(t *testing.T) {
	noop := func(context.Context, string, string) (bool, error) { return true, nil }

	cases := []struct {
		name     string
		fallback signin.FallbackFunc
		err      error
		used     bool
		want     bool
	}{
		{name: "user not found", fallback: noop, err: signin.NewAuthError(signin.CodeUserNotFound, "x"), want: true},
		{name: "invalid credential", fallback: noop, err: signin.NewAuthError(signin.CodeInvalidCredential, "x"), want: true},
		{name: "wrong password", fallback: noop, err: signin.NewAuthError(signin.CodeWrongPassword, "x")},
		{name: "too many requests", fallback: noop, err: signin.NewAuthError(signin.CodeTooManyRequests, "x")},
		{name: "user disabled", fallback: noop, err: signin.NewAuthError(signin.CodeUserDisabled, "x")},
		{name: "no fallback", err: signin.NewAuthError(signin.CodeUserNotFound, "x")},
		{name: "already used", fallback: noop, err: signin.NewAuthError(signin.CodeUserNotFound, "x"), used: true},
		{name: "plain error", fallback: noop, err: errors.New("auth/user-not-found")},
		{name: "network", fallback: noop, err: context.DeadlineExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coordinator := signin.NewFallbackCoordinator(new(MockBackend), tc.fallback, nopLogger{})
			state := &signin.AuthAttemptState{FallbackUsed: tc.used}
			assert.Equal(t, tc.want, coordinator.Eligible(tc.err, state))
		})
	}
}

func TestFallbackCoordinatorIneligibleLeavesLatch(t *testing.T) {
	fallback := new(MockFallback)
	coordinator := signin.NewFallbackCoordinator(new(MockBackend), fallback.Fallback, nopLogger{})
	state := signin.NewAuthAttemptState()

	_, ok := coordinator.TryFallback(
		context.Background(),
		nil,
		signin.Credentials{Email: validEmail, Password: validPassword},
		signin.NewAuthError(signin.CodeTooManyRequests, "x"),
		state,
	)

	assert.False(t, ok)
	assert.False(t, state.FallbackUsed)
	fallback.AssertNotCalled(t, "Fallback", mock.Anything, mock.Anything, mock.Anything)
}

func TestFallbackCoordinatorPassesConfig(t *testing.T) {
	cfg := &signin.Config{Locale: "fr-ca"}
	backend := new(MockBackend)
	backend.On("SignIn", mock.Anything, cfg, validEmail, validPassword).
		Return(&signin.Session{UserID: "u-1"}, nil).Once()

	fallback := new(MockFallback)
	fallback.On("Fallback", mock.Anything, validEmail, validPassword).Return(true, nil).Once()

	coordinator := signin.NewFallbackCoordinator(backend, fallback.Fallback, nopLogger{})
	_, ok := coordinator.TryFallback(
		context.Background(),
		cfg,
		signin.Credentials{Email: validEmail, Password: validPassword},
		signin.NewAuthError(signin.CodeInvalidCredential, "x"),
		signin.NewAuthAttemptState(),
	)

	assert.True(t, ok)
	backend.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestFallbackCoordinatorMarksFollowUpSignIn(t *testing.T) {
	backend := new(MockBackend)
	backend.On("SignIn", mock.MatchedBy(signin.IsFallbackSignIn), mock.Anything, validEmail, validPassword).
		Return(&signin.Session{UserID: "u-1"}, nil).Once()

	fallback := new(MockFallback)
	fallback.On("Fallback", mock.MatchedBy(func(ctx context.Context) bool {
		return !signin.IsFallbackSignIn(ctx)
	}), validEmail, validPassword).Return(true, nil).Once()

	coordinator := signin.NewFallbackCoordinator(backend, fallback.Fallback, nopLogger{})
	_, ok := coordinator.TryFallback(
		context.Background(),
		nil,
		signin.Credentials{Email: validEmail, Password: validPassword},
		signin.NewAuthError(signin.CodeUserNotFound, "x"),
		signin.NewAuthAttemptState(),
	)

	assert.True(t, ok)
	assert.False(t, signin.IsFallbackSignIn(context.Background()))
	backend.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
