package local

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"

	signin "github.com/goliatone/go-signin"
)

// MaxLoginAttempts is the maximun number of failed attempts a user gets
// in a cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = 24 * time.Hour

// Backend is a signin.IdentityBackend backed by a Users store
type Backend struct {
	users                 Users
	tokens                *TokenService
	logger                signin.Logger
	enumerationProtection bool
	now                   func() time.Time
}

var _ signin.IdentityBackend = (*Backend)(nil)

// NewBackend returns a Backend that issues tokens with tokens
func NewBackend(users Users, tokens *TokenService) *Backend {
	return &Backend{
		users:  users,
		tokens: tokens,
		logger: nopLogger{},
		now:    time.Now,
	}
}

func (b *Backend) WithLogger(logger signin.Logger) *Backend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithEnumerationProtection reports unknown users and wrong passwords with
// the same invalid-credential code.
func (b *Backend) WithEnumerationProtection(enabled bool) *Backend {
	b.enumerationProtection = enabled
	return b
}

// WithClock injects a custom clock (useful for tests).
func (b *Backend) WithClock(now func() time.Time) *Backend {
	if now != nil {
		b.now = now
	}
	return b
}

// SignIn implements signin.IdentityBackend
func (b *Backend) SignIn(ctx context.Context, cfg *signin.Config, email, password string) (*signin.Session, error) {
	user, err := b.users.GetByIdentifier(ctx, NormalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, b.notFound()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during sign in")
	}

	if user.IsDisabled() {
		return nil, signin.NewAuthError(signin.CodeUserDisabled, "user account is disabled")
	}

	if user.LoginAttemptAt != nil && b.now().Sub(*user.LoginAttemptAt) > CoolDownPeriod {
		user.LoginAttempts = 0
	}

	// if we have too many attempts in the given window, cool off!
	if user.LoginAttempts >= MaxLoginAttempts {
		return nil, signin.NewAuthError(signin.CodeTooManyRequests, "too many failed sign in attempts")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := b.users.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		if !goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, err
		}

		return nil, b.wrongPassword()
	}

	if err := b.users.TrackSuccessfulLogin(ctx, user); err != nil {
		b.logger.Error("failed to track successful login", "error", err)
	}

	token, issued, expires, err := b.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	return &signin.Session{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Token:     token,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}

// ImportUser stores an account carried over from another system. The hash
// is kept as is, so it must be a bcrypt hash.
func (b *Backend) ImportUser(ctx context.Context, email, passwordHash string) error {
	email = NormalizeEmail(email)

	if _, err := b.users.GetByIdentifier(ctx, email); err == nil {
		return ErrAccountExists
	} else if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing account")
	}

	user := &User{
		Email:        email,
		PasswordHash: passwordHash,
	}
	user.AddMetadata("imported_at", b.now().UTC().Format(time.RFC3339))

	if _, err := b.users.Register(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not import user")
	}

	return nil
}

func (b *Backend) notFound() error {
	if b.enumerationProtection {
		return signin.NewAuthError(signin.CodeInvalidCredential, "invalid credentials")
	}
	return signin.NewAuthError(signin.CodeUserNotFound, "user not found")
}

func (b *Backend) wrongPassword() error {
	if b.enumerationProtection {
		return signin.NewAuthError(signin.CodeInvalidCredential, "invalid credentials")
	}
	return signin.NewAuthError(signin.CodeWrongPassword, "wrong password")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
