package signin

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Credentials holds the raw values submitted by the sign-in form.
// Values are free-form text, only the Validator decides if they are usable.
type Credentials struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Session is what an IdentityBackend returns once a user is signed in.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Config is the read-only UI configuration shared by every submission.
type Config struct {
	Locale string `json:"locale" yaml:"locale"`
	// Translations overrides catalog strings, namespace -> key -> text.
	Translations      map[string]map[string]string `json:"translations,omitempty" yaml:"translations,omitempty"`
	MinPasswordLength int                          `json:"min_password_length" yaml:"min_password_length"`
}

// ConfigSource loads the UI configuration.
type ConfigSource interface {
	Config(ctx context.Context) (*Config, error)
}

// ConfigSourceFunc adapts a function to the ConfigSource interface.
type ConfigSourceFunc func(ctx context.Context) (*Config, error)

// Config implements ConfigSource.
func (f ConfigSourceFunc) Config(ctx context.Context) (*Config, error) {
	return f(ctx)
}

// StaticConfig returns a ConfigSource that always yields cfg.
func StaticConfig(cfg *Config) ConfigSource {
	return ConfigSourceFunc(func(context.Context) (*Config, error) {
		if cfg == nil {
			return nil, ErrConfigUnavailable
		}
		return cfg, nil
	})
}

// Translator resolves a user facing string. A missing key is a catalog
// defect, implementations should return something printable regardless.
type Translator interface {
	Translate(ctx context.Context, namespace, key string) string
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, namespace, key string) string

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, namespace, key string) string {
	return f(ctx, namespace, key)
}

// TranslatorProvider binds a Translator to a configuration. cfg is nil when
// the configuration could not be loaded.
type TranslatorProvider func(cfg *Config) Translator

// IdentityBackend signs users in. Failures must carry a stable code, see
// NewAuthError.
type IdentityBackend interface {
	SignIn(ctx context.Context, cfg *Config, email, password string) (*Session, error)
}

// FallbackFunc is a caller supplied secondary credential check. Returning true
// only authorizes a second primary sign-in, it does not create a session.
type FallbackFunc func(ctx context.Context, email, password string) (bool, error)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] SIGNIN " + formatMessage(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] SIGNIN " + formatMessage(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] SIGNIN " + formatMessage(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] SIGNIN " + formatMessage(format, args...))
}

// formatMessage supports both printf style calls and key/value pairs.
func formatMessage(format string, args ...any) string {
	if len(args) == 0 {
		return newline(format)
	}

	if strings.Contains(format, "%") {
		return newline(fmt.Sprintf(format, args...))
	}

	var b strings.Builder
	b.WriteString(format)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
