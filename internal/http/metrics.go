package http

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/git2pdf/internal/http"

// Conversion requests hold the connection through clone and render, so the
// upper buckets run past the default clone timeout.
var durationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// requestMetrics records per-route request instruments.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	bytes    metric.Int64Histogram
	inflight metric.Int64UpDownCounter
}

// newRequestMetrics builds instruments on meter. Instruments that fail to
// register are replaced with no-ops and the failure is logged.
func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	var (
		m    requestMetrics
		err  error
		errs []error
	)
	if m.requests, err = meter.Int64Counter("git2pdf.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.requests = noop.Int64Counter{}
	}
	if m.duration, err = meter.Float64Histogram("git2pdf.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		errs = append(errs, err)
		m.duration = noop.Float64Histogram{}
	}
	if m.bytes, err = meter.Int64Histogram("git2pdf.http.response_size_bytes",
		metric.WithDescription("Response body size; artifact downloads dominate the upper buckets"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 1<<14, 1<<18, 1<<20, 1<<22, 1<<24, 1<<26)); err != nil {
		errs = append(errs, err)
		m.bytes = noop.Int64Histogram{}
	}
	if m.inflight, err = meter.Int64UpDownCounter("git2pdf.http.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.inflight = noop.Int64UpDownCounter{}
	}
	if err := errors.Join(errs...); err != nil && logger != nil {
		logger.Warn("http metrics partially disabled", zap.Error(err))
	}
	return &m
}

// middleware records one observation per request after the handler chain,
// including error responses rendered by c.Error.
func (m *requestMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		start := time.Now()
		m.inflight.Add(ctx, 1)
		defer m.inflight.Add(ctx, -1)

		err := next(c)

		res := c.Response()
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request().Method),
			attribute.String("endpoint", routePattern(c)),
			attribute.Int("status", res.Status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.bytes.Record(ctx, res.Size, attrs)
		return err
	}
}

// routePattern labels requests by their matched route so artifact names stay
// out of metric attributes.
func routePattern(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
