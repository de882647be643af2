package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(ctxOrBackground(cmd), cfg)
		},
	}

	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("backend", "", "identity backend: local or identitytoolkit")
	cmd.Flags().Bool("debug", false, "print submissions")
	cmd.Flags().Bool("legacy.enabled", false, "verify rejected credentials against the legacy store")
	cmd.Flags().String("redis.addr", "", "redis address, enables the sign-in throttle")
	cmd.Flags().String("form.locale", "", "form locale")

	return cmd
}

func runServe(ctx context.Context, cfg AppConfig) error {
	logger := newLogger(cfg.LogLevel)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer app.Close()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "backend", cfg.Backend, "legacy", cfg.Legacy.Enabled)
		errc <- app.srv.Serve(cfg.Addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errc:
		return err
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return app.srv.Shutdown(shutdownCtx)
}
