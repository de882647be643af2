package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sethvargo/go-retry"

	signin "github.com/goliatone/go-signin"
)

// DefaultEndpoint is the Identity Toolkit v1 API root
const DefaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

const signInPath = "/accounts:signInWithPassword"

// localeHeader tells the API which language to use for emails it sends
const localeHeader = "X-Firebase-Locale"

// restCodes maps API error messages to sign-in codes
var restCodes = map[string]string{
	"EMAIL_NOT_FOUND":             signin.CodeUserNotFound,
	"INVALID_PASSWORD":            signin.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   signin.CodeInvalidCredential,
	"USER_DISABLED":               signin.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": signin.CodeTooManyRequests,
	"INVALID_EMAIL":               signin.CodeInvalidEmail,
	"MISSING_PASSWORD":            signin.CodeWrongPassword,
	"OPERATION_NOT_ALLOWED":       signin.CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":     signin.CodeOperationNotAllowed,
}

// CodeFromMessage maps an API error message such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account..." to a sign-in code.
func CodeFromMessage(message string) (string, bool) {
	key := strings.TrimSpace(message)
	if i := strings.IndexAny(key, " :"); i >= 0 {
		key = key[:i]
	}
	code, ok := restCodes[key]
	return code, ok
}

// Backend signs in through the Identity Toolkit REST API
type Backend struct {
	apiKey     string
	endpoint   string
	client     *http.Client
	maxRetries uint64
	backoff    time.Duration
	logger     signin.Logger
	now        func() time.Time
}

var _ signin.IdentityBackend = (*Backend)(nil)

// NewBackend returns a Backend for the project identified by apiKey
func NewBackend(apiKey string) *Backend {
	return &Backend{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
		logger:     nopLogger{},
		now:        time.Now,
	}
}

// WithEndpoint overrides the API root, used for the emulator and tests
func (b *Backend) WithEndpoint(endpoint string) *Backend {
	b.endpoint = strings.TrimRight(endpoint, "/")
	return b
}

func (b *Backend) WithHTTPClient(client *http.Client) *Backend {
	if client != nil {
		b.client = client
	}
	return b
}

// WithRetries sets how often transient failures are retried and the base
// exponential backoff.
func (b *Backend) WithRetries(max uint64, backoff time.Duration) *Backend {
	b.maxRetries = max
	if backoff > 0 {
		b.backoff = backoff
	}
	return b
}

func (b *Backend) WithLogger(logger signin.Logger) *Backend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn implements signin.IdentityBackend
func (b *Backend) SignIn(ctx context.Context, cfg *signin.Config, email, password string) (*signin.Session, error) {
	body, err := json.Marshal(signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode sign in request")
	}

	backoff := retry.WithMaxRetries(b.maxRetries, retry.NewExponential(b.backoff))

	var session *signin.Session
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := b.do(ctx, cfg, body)
		if err != nil {
			if isTransient(err) {
				b.logger.Warn("identity toolkit request failed, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		session = s
		return nil
	})

	if err != nil {
		if goerrors.Is(err, context.Canceled) || goerrors.Is(err, context.DeadlineExceeded) {
			return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "identity toolkit request cancelled").
				WithTextCode(signin.CodeNetworkRequestFailed)
		}
		return nil, err
	}

	return session, nil
}

func (b *Backend) do(ctx context.Context, cfg *signin.Config, body []byte) (*signin.Session, error) {
	u := b.endpoint + signInPath + "?" + url.Values{"key": {b.apiKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build sign in request")
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg != nil && cfg.Locale != "" {
		req.Header.Set(localeHeader, cfg.Locale)
	}

	res, err := b.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, networkError(err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, b.apiError(res.StatusCode, payload)
	}

	var out signInResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "malformed sign in response")
	}

	issued := b.now()
	session := &signin.Session{
		UserID:   out.LocalID,
		Email:    out.Email,
		Token:    out.IDToken,
		IssuedAt: issued,
	}
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil {
		session.ExpiresAt = issued.Add(time.Duration(secs) * time.Second)
	}

	return session, nil
}

func (b *Backend) apiError(status int, payload []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(payload, &apiErr)

	if code, ok := CodeFromMessage(apiErr.Error.Message); ok {
		return signin.NewAuthError(code, apiErr.Error.Message).
			WithMetadata(map[string]any{"status": status})
	}

	category := goerrors.CategoryExternal
	if status < http.StatusInternalServerError {
		category = goerrors.CategoryAuth
	}

	return goerrors.New("identity toolkit request failed", category).
		WithCode(status).
		WithMetadata(map[string]any{
			"status":  status,
			"message": apiErr.Error.Message,
		})
}

func networkError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "identity toolkit unreachable").
		WithTextCode(signin.CodeNetworkRequestFailed)
}

// isTransient is true for transport failures and 5xx responses
func isTransient(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	if richErr.Category != goerrors.CategoryExternal {
		return false
	}
	if goerrors.Is(err, context.Canceled) || goerrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return richErr.TextCode == signin.CodeNetworkRequestFailed || richErr.Code >= http.StatusInternalServerError
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
