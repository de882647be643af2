package throttle

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	signin "github.com/goliatone/go-signin"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
	DefaultKeyPrefix   = "signin:throttle:"
)

// countedCodes are the failures that count against an email address
var countedCodes = map[string]struct{}{
	signin.CodeUserNotFound:      {},
	signin.CodeInvalidCredential: {},
	signin.CodeWrongPassword:     {},
}

// Backend wraps a signin.IdentityBackend and refuses sign-ins for an email
// once it has failed MaxAttempts times inside Window. Counters live in redis
// so every replica shares them.
type Backend struct {
	next        signin.IdentityBackend
	redis       redis.Cmdable
	maxAttempts int64
	window      time.Duration
	prefix      string
	logger      signin.Logger
}

var _ signin.IdentityBackend = (*Backend)(nil)

func New(next signin.IdentityBackend, client redis.Cmdable) *Backend {
	return &Backend{
		next:        next,
		redis:       client,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		prefix:      DefaultKeyPrefix,
		logger:      nopLogger{},
	}
}

func (b *Backend) WithLimit(maxAttempts int, window time.Duration) *Backend {
	if maxAttempts > 0 {
		b.maxAttempts = int64(maxAttempts)
	}
	if window > 0 {
		b.window = window
	}
	return b
}

func (b *Backend) WithKeyPrefix(prefix string) *Backend {
	if prefix != "" {
		b.prefix = prefix
	}
	return b
}

func (b *Backend) WithLogger(logger signin.Logger) *Backend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// SignIn implements signin.IdentityBackend. Redis failures are logged and
// the request goes through to the wrapped backend.
// The follow-up sign-in of an approving fallback skips the limit check.
func (b *Backend) SignIn(ctx context.Context, cfg *signin.Config, email, password string) (*signin.Session, error) {
	key := b.key(email)

	limited := false
	if !signin.IsFallbackSignIn(ctx) {
		var err error
		limited, err = b.limited(ctx, key)
		if err != nil {
			b.logger.Warn("throttle check failed", "error", err)
		}
	}
	if limited {
		return nil, signin.NewAuthError(signin.CodeTooManyRequests, "too many failed sign in attempts").
			WithMetadata(map[string]any{"window": b.window.String()})
	}

	session, err := b.next.SignIn(ctx, cfg, email, password)
	if err != nil {
		if code, ok := signin.AuthErrorCode(err); ok {
			if _, counted := countedCodes[code]; counted {
				if rerr := b.recordFailure(ctx, key); rerr != nil {
					b.logger.Warn("throttle record failed", "error", rerr)
				}
			}
		}
		return nil, err
	}

	if rerr := b.redis.Del(ctx, key).Err(); rerr != nil {
		b.logger.Warn("throttle reset failed", "error", rerr)
	}

	return session, nil
}

// Attempts returns the failures currently counted for email
func (b *Backend) Attempts(ctx context.Context, email string) (int64, error) {
	count, err := b.redis.Get(ctx, b.key(email)).Int64()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to read throttle counter")
	}
	return count, nil
}

func (b *Backend) limited(ctx context.Context, key string) (bool, error) {
	count, err := b.redis.Get(ctx, key).Int64()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return count >= b.maxAttempts, nil
}

func (b *Backend) recordFailure(ctx context.Context, key string) error {
	count, err := b.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return b.redis.Expire(ctx, key, b.window).Err()
	}
	return nil
}

func (b *Backend) key(email string) string {
	return b.prefix + strings.ToLower(strings.TrimSpace(email))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
