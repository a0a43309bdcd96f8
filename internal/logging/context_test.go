package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

func fieldMap(ctx context.Context) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range ContextFields(ctx) {
		f.AddTo(enc)
	}
	return enc.Fields
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	provider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithSyncer(tracetest.NewInMemoryExporter()),
	)
	ctx, span := provider.Tracer("test").Start(context.Background(), "convert")
	defer span.End()

	m := fieldMap(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
	assert.Equal(t, true, m["trace_sampled"])
}

func TestContextFields_IDs(t *testing.T) {
	ctx := WithOperationID(context.Background(), "1718000000000-abc")
	ctx = WithRequestID(ctx, "req_42")

	m := fieldMap(ctx)
	assert.Equal(t, "1718000000000-abc", m["operation.id"])
	assert.Equal(t, "req_42", m["request.id"])
	assert.Equal(t, "1718000000000-abc", OperationIDFromContext(ctx))
	assert.Equal(t, "req_42", RequestIDFromContext(ctx))
}

func TestWithOperationID_Invalid(t *testing.T) {
	assert.Panics(t, func() { WithOperationID(context.Background(), "") })
	assert.Panics(t, func() { WithOperationID(context.Background(), "../etc") })
	assert.Panics(t, func() { WithOperationID(context.Background(), strings.Repeat("a", maxIDLen+1)) })
}

func TestWithRequestID_InvalidDropped(t *testing.T) {
	for _, id := range []string{"", "bad id with spaces", "ünïcode"} {
		ctx := WithRequestID(context.Background(), id)
		assert.Empty(t, RequestIDFromContext(ctx), id)
	}
}
