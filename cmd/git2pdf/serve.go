package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/git2pdf/internal/config"
	httpserver "github.com/fyrsmithlabs/git2pdf/internal/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the git2pdf HTTP API until SIGINT or SIGTERM.

Edits to the config file are picked up without a restart, except for
limits.max_concurrent and the server section.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, configPath)
		},
	}
}

// runServe starts the HTTP server and blocks until ctx is cancelled.
func runServe(ctx context.Context, path string) error {
	a, err := newApp(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.logger.Underlying()
	a.store.OnChange(func(next *config.Config) {
		if next.Limits.MaxConcurrent != a.cfg.Limits.MaxConcurrent {
			log.Warn("limits.max_concurrent changes take effect after restart",
				zap.Int("running", a.cfg.Limits.MaxConcurrent),
				zap.Int("configured", next.Limits.MaxConcurrent))
		}
	})
	go func() {
		if err := a.store.Watch(ctx); err != nil {
			log.Warn("config hot reload disabled", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(a.converter, log.Named("http"), &httpserver.Config{
		Host:            a.cfg.Server.Host,
		Port:            a.cfg.Server.Port,
		ShutdownTimeout: a.shutdownTimeout(),
		RateLimit:       a.cfg.Server.RateLimit,
		RateBurst:       a.cfg.Server.RateBurst,
	})
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "Starting git2pdf",
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port),
		zap.Int("max_concurrent", a.cfg.Limits.MaxConcurrent),
		zap.String("version", version))

	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.logger.Info(context.Background(), "Server shutdown complete")
	return nil
}
