package main

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/fallback/legacy"
	"github.com/goliatone/go-signin/i18n"
	"github.com/goliatone/go-signin/metrics"
	"github.com/goliatone/go-signin/provider/identitytoolkit"
	"github.com/goliatone/go-signin/provider/local"
	"github.com/goliatone/go-signin/throttle"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config   AppConfig
	logger   *slog.Logger
	db       *bun.DB
	users    local.Users
	local    *local.Backend
	accounts legacy.Accounts
	redis    *redis.Client
	backend  signin.IdentityBackend
	registry *prometheus.Registry
	observer *metrics.Observer
	form     *signin.EmailPasswordForm
	srv      router.Server[*fiber.App]
}

// NewApp wires the application for cfg. Close releases what it opened.
func NewApp(ctx context.Context, cfg AppConfig, logger *slog.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithBackend,
		WithForm,
		WithHTTPServer,
	}

	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return goerrors.Wrap(errs[0], goerrors.CategoryInternal, "failed to close app")
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// OpenDB opens the sqlite database at dsn and creates the tables.
func OpenDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := local.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := legacy.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := OpenDB(ctx, app.config.Database.DSN)
	if err != nil {
		return err
	}

	app.db = db
	app.users = local.NewUsersRepository(db)
	app.accounts = legacy.NewAccountsRepository(db)

	return nil
}

func WithBackend(ctx context.Context, app *App) error {
	cfg := app.config
	logger := app.logger.With("component", "backend")

	app.local = local.NewBackend(
		app.users,
		local.NewTokenService([]byte(cfg.Auth.SigningKey), cfg.Auth.TokenTTL, cfg.Auth.Issuer),
	).
		WithLogger(logger).
		WithEnumerationProtection(cfg.Auth.EnumerationProtection)

	switch cfg.Backend {
	case BackendIdentityToolkit:
		itk := identitytoolkit.NewBackend(cfg.IdentityToolkit.APIKey).
			WithRetries(uint64(max(cfg.IdentityToolkit.Retries, 0)), cfg.IdentityToolkit.Backoff).
			WithLogger(logger)
		if cfg.IdentityToolkit.Endpoint != "" {
			itk.WithEndpoint(cfg.IdentityToolkit.Endpoint)
		}
		app.backend = itk
	default:
		app.backend = app.local
	}

	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := app.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, throttle fails open", "addr", cfg.Redis.Addr, "error", err)
		}

		app.backend = throttle.New(app.backend, app.redis).
			WithLimit(cfg.Redis.MaxAttempts, cfg.Redis.Window).
			WithLogger(logger)
	}

	return nil
}

func WithForm(ctx context.Context, app *App) error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.observer = metrics.NewObserver(app.registry)

	form := signin.NewEmailPasswordForm(app.backend, signin.StaticConfig(app.config.Form.SignInConfig())).
		WithLogger(app.logger.With("component", "form")).
		WithTranslatorProvider(i18n.Default().Provider()).
		WithObserver(app.observer).
		WithActivitySink(activityLogger(app.logger.With("component", "activity")))

	if app.config.Legacy.Enabled {
		verifier := legacy.NewVerifier(app.accounts, app.local).
			WithLogger(app.logger.With("component", "legacy"))
		form.WithFallback(verifier.Fallback())
	}

	app.form = form
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	engine := django.NewPathForwardingFileSystem(http.FS(viewsFS), "/views", ".html")

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			PassLocalsToViews:     true,
			DisableStartupMessage: true,
			Views:                 engine,
		}))
	})

	signin.RegisterSignInRoutes(srv.Router(), app.form,
		signin.WithControllerLogger(app.logger.With("component", "http")),
		signin.WithControllerDebug(app.config.Debug),
		signin.WithControllerRoutes(signin.SignInControllerRoutes{
			ForgotPassword: app.config.Routes.ForgotPassword,
			Register:       app.config.Routes.Register,
		}),
		signin.WithSessionCookie(signin.SessionCookie{
			Name:     app.config.Auth.CookieName,
			Path:     "/",
			Secure:   app.config.Auth.SecureCookie,
			HTTPOnly: true,
			SameSite: router.CookieSameSiteLaxMode,
		}),
	)

	srv.Router().Get("/", func(ctx router.Context) error {
		return ctx.Render("home", router.ViewContext{
			"signed_in": ctx.Cookies(app.config.Auth.CookieName) != "",
		})
	}).SetName("home.get")

	srv.WrappedRouter().Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
	))

	app.srv = srv
	return nil
}

func activityLogger(logger *slog.Logger) signin.ActivitySink {
	return signin.ActivitySinkFunc(func(_ context.Context, event signin.ActivityEvent) error {
		logger.Info("sign-in activity",
			"event", event.EventType,
			"email", event.Email,
			"user_id", event.UserID,
			"kind", event.Kind,
			"code", event.Code,
		)
		return nil
	})
}
