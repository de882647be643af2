package identitytoolkit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/provider/identitytoolkit"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestSignInSuccess(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "fr-ca", r.Header.Get("X-Firebase-Locale"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "s3cret-pass", body["password"])
		assert.Equal(t, true, body["returnSecureToken"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-1",
			"email":        "ada@example.com",
			"idToken":      "id-token",
			"refreshToken": "refresh",
			"expiresIn":    "3600",
		})
	})

	backend := identitytoolkit.NewBackend("test-key").WithEndpoint(srv.URL + "/v1/")

	session, err := backend.SignIn(context.Background(), &signin.Config{Locale: "fr-ca"}, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.UserID)
	assert.Equal(t, "ada@example.com", session.Email)
	assert.Equal(t, "id-token", session.Token)
	assert.Equal(t, time.Hour, session.ExpiresAt.Sub(session.IssuedAt))
}

func TestSignInMapsErrorCodes(t *testing.T) {
	cases := []struct {
		message string
		code    string
	}{
		{"EMAIL_NOT_FOUND", signin.CodeUserNotFound},
		{"INVALID_PASSWORD", signin.CodeWrongPassword},
		{"INVALID_LOGIN_CREDENTIALS", signin.CodeInvalidCredential},
		{"USER_DISABLED", signin.CodeUserDisabled},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", signin.CodeTooManyRequests},
		{"INVALID_EMAIL", signin.CodeInvalidEmail},
		{"PASSWORD_LOGIN_DISABLED", signin.CodeOperationNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusBadRequest, tc.message)
			})

			backend := identitytoolkit.NewBackend("k").WithEndpoint(srv.URL)
			_, err := backend.SignIn(context.Background(), nil, "ada@example.com", "pw")
			require.Error(t, err)

			code, ok := signin.AuthErrorCode(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestSignInUnknownClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusBadRequest, "SOMETHING_NEW")
	})

	backend := identitytoolkit.NewBackend("k").WithEndpoint(srv.URL).WithRetries(3, time.Millisecond)
	_, err := backend.SignIn(context.Background(), nil, "ada@example.com", "pw")
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, signin.ErrorKindUnrecoverableAuth, signin.Classify(err).Kind)
}

func TestSignInRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"localId": "uid-1", "email": "ada@example.com", "idToken": "t"})
	})

	backend := identitytoolkit.NewBackend("k").WithEndpoint(srv.URL).WithRetries(3, time.Millisecond)
	session, err := backend.SignIn(context.Background(), nil, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.UserID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSignInGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusBadGateway, "")
	})

	backend := identitytoolkit.NewBackend("k").WithEndpoint(srv.URL).WithRetries(2, time.Millisecond)
	_, err := backend.SignIn(context.Background(), nil, "ada@example.com", "pw")
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, signin.IsNetworkError(err))
}

func TestSignInUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend := identitytoolkit.NewBackend("k").WithEndpoint(url).WithRetries(1, time.Millisecond)
	_, err := backend.SignIn(context.Background(), nil, "ada@example.com", "pw")
	require.Error(t, err)

	code, ok := signin.AuthErrorCode(err)
	assert.False(t, ok, code)
	c := signin.Classify(err)
	assert.Equal(t, signin.ErrorKindUnrecoverableAuth, c.Kind)
}

func TestSignInCancelledContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := identitytoolkit.NewBackend("k").WithEndpoint(srv.URL).SignIn(ctx, nil, "ada@example.com", "pw")
	require.Error(t, err)
	assert.True(t, signin.IsNetworkError(err))
}

func TestCodeFromMessage(t *testing.T) {
	code, ok := identitytoolkit.CodeFromMessage("USER_DISABLED: The user account has been disabled")
	assert.True(t, ok)
	assert.Equal(t, signin.CodeUserDisabled, code)

	_, ok = identitytoolkit.CodeFromMessage("")
	assert.False(t, ok)
}
