package main

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/throttle"
)

const (
	BackendLocal           = "local"
	BackendIdentityToolkit = "identitytoolkit"
)

type AppConfig struct {
	Addr     string `koanf:"addr"`
	Debug    bool   `koanf:"debug"`
	LogLevel string `koanf:"log_level"`
	Backend  string `koanf:"backend"`

	Database        DatabaseConfig        `koanf:"database"`
	Auth            AuthConfig            `koanf:"auth"`
	IdentityToolkit IdentityToolkitConfig `koanf:"identitytoolkit"`
	Redis           RedisConfig           `koanf:"redis"`
	Legacy          LegacyConfig          `koanf:"legacy"`
	Form            FormConfig            `koanf:"form"`
	Routes          RoutesConfig          `koanf:"routes"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type AuthConfig struct {
	SigningKey            string        `koanf:"signing_key"`
	Issuer                string        `koanf:"issuer"`
	TokenTTL              time.Duration `koanf:"token_ttl"`
	EnumerationProtection bool          `koanf:"enumeration_protection"`
	CookieName            string        `koanf:"cookie_name"`
	SecureCookie          bool          `koanf:"secure_cookie"`
}

type IdentityToolkitConfig struct {
	APIKey   string        `koanf:"api_key"`
	Endpoint string        `koanf:"endpoint"`
	Retries  int           `koanf:"retries"`
	Backoff  time.Duration `koanf:"backoff"`
}

// RedisConfig enables the sign-in throttle when Addr is set
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`
}

type LegacyConfig struct {
	Enabled bool `koanf:"enabled"`
}

// RoutesConfig holds the links the sign-in page points to. They are served
// elsewhere, an empty value hides the link.
type RoutesConfig struct {
	ForgotPassword string `koanf:"forgot_password"`
	Register       string `koanf:"register"`
}

type FormConfig struct {
	Locale            string                       `koanf:"locale"`
	MinPasswordLength int                          `koanf:"min_password_length"`
	Translations      map[string]map[string]string `koanf:"translations"`
}

// SignInConfig converts the form section to the form UI configuration
func (f FormConfig) SignInConfig() *signin.Config {
	return &signin.Config{
		Locale:            f.Locale,
		MinPasswordLength: f.MinPasswordLength,
		Translations:      f.Translations,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		Addr:     ":8572",
		LogLevel: "info",
		Backend:  BackendLocal,
		Database: DatabaseConfig{
			DSN: "file:signin.db?cache=shared",
		},
		Auth: AuthConfig{
			Issuer:     "go-signin",
			TokenTTL:   24 * time.Hour,
			CookieName: "signin_session",
		},
		IdentityToolkit: IdentityToolkitConfig{
			Retries: 2,
			Backoff: 200 * time.Millisecond,
		},
		Redis: RedisConfig{
			MaxAttempts: throttle.DefaultMaxAttempts,
			Window:      throttle.DefaultWindow,
		},
		Form: FormConfig{
			Locale:            "en-us",
			MinPasswordLength: signin.DefaultMinPasswordLength,
		},
	}
}

// Validate checks the settings the selected backend needs
func (c AppConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendLocal, BackendIdentityToolkit)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}

	switch c.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Auth.SigningKey) == "" {
			return goerrors.New("auth.signing_key is required for the local backend", goerrors.CategoryValidation).
				WithTextCode("CONFIG_INVALID")
		}
	case BackendIdentityToolkit:
		if strings.TrimSpace(c.IdentityToolkit.APIKey) == "" {
			return goerrors.New("identitytoolkit.api_key is required for the identitytoolkit backend", goerrors.CategoryValidation).
				WithTextCode("CONFIG_INVALID")
		}
		if c.Legacy.Enabled {
			return goerrors.New("legacy fallback needs the local backend to import accounts", goerrors.CategoryValidation).
				WithTextCode("CONFIG_INVALID")
		}
	}

	return nil
}

// LoadConfig reads defaults, then the YAML file at path when set, then any
// flag the user changed. The result is not validated.
func LoadConfig(path string, flags *pflag.FlagSet) (AppConfig, error) {
	cfg := defaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, changedOnly(flags)), nil); err != nil {
			return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read flags")
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}

	return cfg, nil
}

// changedOnly skips flags left at their default so they do not mask values
// from defaultConfig.
func changedOnly(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}
		return f.Name, posflag.FlagVal(flags, f)
	}
}
