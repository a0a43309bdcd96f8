package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled ignores fields", mutate: func(c *Config) { c.Endpoint = ""; c.SampleRate = 7 }},
		{name: "local insecure", mutate: func(c *Config) { c.Enabled = true }},
		{name: "ipv6 loopback", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }},
		{name: "127 range", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "127.0.0.2:4317" }},
		{name: "remote over tls", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.internal:4317"
			c.Insecure = false
		}},
		{name: "remote insecure", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.internal:4317"
		}, wantErr: "only loopback"},
		{name: "missing endpoint", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "" }, wantErr: "endpoint is required"},
		{name: "sample rate", mutate: func(c *Config) { c.Enabled = true; c.SampleRate = -0.1 }, wantErr: "sample_rate"},
		{name: "negative interval", mutate: func(c *Config) { c.Enabled = true; c.MetricsInterval = -time.Second }, wantErr: "metrics_interval"},
		{name: "zero shutdown", mutate: func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, wantErr: "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("git2pdf"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Err())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_ExportsSpans(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Logs = false

	exp := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel, err := New(context.Background(), cfg,
		WithVersion("1.2.3"), WithSpanExporter(exp), WithMetricReader(reader))
	require.NoError(t, err)
	require.NoError(t, tel.Err())

	_, span := tel.Tracer("git2pdf").Start(context.Background(), "convert")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tel.ForceFlush(ctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "convert", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", ServiceName))
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.version", "1.2.3"))

	require.NoError(t, tel.Shutdown(ctx))
}

type logSink struct {
	mu     sync.Mutex
	bodies []string
}

func (s *logSink) Export(_ context.Context, records []sdklog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.bodies = append(s.bodies, r.Body().AsString())
	}
	return nil
}

func (s *logSink) Shutdown(context.Context) error   { return nil }
func (s *logSink) ForceFlush(context.Context) error { return nil }

func TestNew_ExportsLogs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsInterval = 0

	sink := &logSink{}
	tel, err := New(context.Background(), cfg,
		WithSpanExporter(tracetest.NewInMemoryExporter()), WithLogExporter(sink))
	require.NoError(t, err)
	require.NotNil(t, tel.LoggerProvider())

	var rec log.Record
	rec.SetBody(log.StringValue("artifact published"))
	rec.SetSeverity(log.SeverityInfo)
	tel.LoggerProvider().Logger("git2pdf").Emit(context.Background(), rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tel.ForceFlush(ctx))

	sink.mu.Lock()
	assert.Equal(t, []string{"artifact published"}, sink.bodies)
	sink.mu.Unlock()
	require.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Err())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTestTelemetry(t *testing.T) {
	tel := NewTestTelemetry()

	_, span := tel.Tracer("git2pdf").Start(context.Background(), "convert.fetch")
	span.SetAttributes(attribute.Int64("clone.depth", 1), attribute.String("repository", "acme/widgets"))
	span.SetStatus(codes.Error, "clone timed out")
	span.End()

	tel.AssertSpanExists(t, "convert.fetch")
	tel.AssertSpanError(t, "convert.fetch")
	tel.AssertSpanAttribute(t, "convert.fetch", "clone.depth", int64(1))
	tel.AssertSpanAttribute(t, "convert.fetch", "repository", "acme/widgets")
	assert.Nil(t, tel.SpanByName("convert.walk"))
}
