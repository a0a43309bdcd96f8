package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the SDK providers installed as otel globals.
//
// An exporter that fails to build leaves its signal on the no-op global and
// is reported by Err; conversions never fail because of telemetry.
type Telemetry struct {
	shutdownTimeout time.Duration

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider

	setupErr error
}

// New installs tracer and meter providers for an enabled config. A disabled
// config returns an instance whose methods are no-ops.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{shutdownTimeout: cfg.ShutdownTimeout}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := serviceResource(o.version)

	var errs []error
	if tp, err := buildTracerProvider(ctx, cfg, res, &o); err != nil {
		errs = append(errs, err)
	} else {
		t.tp = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := buildMeterProvider(ctx, cfg, res, &o); err != nil {
		errs = append(errs, err)
	} else if mp != nil {
		t.mp = mp
		otel.SetMeterProvider(mp)
	}
	if lp, err := buildLoggerProvider(ctx, cfg, res, &o); err != nil {
		errs = append(errs, err)
	} else {
		t.lp = lp
	}
	t.setupErr = errors.Join(errs...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Err reports exporters that could not be built.
func (t *Telemetry) Err() error {
	if t == nil {
		return nil
	}
	return t.setupErr
}

// Tracer returns a tracer from the installed provider, or the global one.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if t == nil || t.tp == nil {
		return otel.Tracer(name)
	}
	return t.tp.Tracer(name)
}

// LoggerProvider returns the provider that log bridges should write to, or
// nil when log export is off.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.lp == nil {
		return nil
	}
	return t.lp
}

// ForceFlush exports pending spans, metrics and logs.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.ForceFlush(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.ForceFlush(ctx))
	}
	if t.lp != nil {
		errs = append(errs, t.lp.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. Without a ctx deadline it is
// bounded by the configured shutdown timeout.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.lp != nil {
		if err := t.lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
