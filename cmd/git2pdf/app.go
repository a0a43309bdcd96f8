package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/git2pdf/internal/config"
	"github.com/fyrsmithlabs/git2pdf/internal/converter"
	"github.com/fyrsmithlabs/git2pdf/internal/logging"
	"github.com/fyrsmithlabs/git2pdf/internal/telemetry"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg       *config.Config
	store     *config.Store
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	converter *converter.Service
}

// newApp loads configuration and wires logging, telemetry and the
// conversion service.
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry, telemetry.WithVersion(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := tel.Err(); err != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(err))
	}

	store := config.NewStore(cfg, path, logger.Underlying().Named("config"))
	svc, err := converter.NewService(store, logger.Underlying().Named("converter"))
	if err != nil {
		_ = tel.Shutdown(ctx)
		_ = logger.Sync()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		telemetry: tel,
		converter: svc,
	}, nil
}

// Close flushes telemetry and logs.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.ShutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync() // Best-effort sync on shutdown
}

// shutdownTimeout returns the configured grace period, with a floor for
// zero values.
func (a *app) shutdownTimeout() time.Duration {
	if d := a.cfg.Server.ShutdownTimeout.Duration(); d > 0 {
		return d
	}
	return 10 * time.Second
}
