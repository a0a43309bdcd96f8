package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	operationKey struct{}
	requestKey   struct{}
)

// maxIDLen bounds operation and request IDs carried in logs.
const maxIDLen = 128

// ContextFields returns the correlation fields carried by ctx: the active
// span, the conversion operation ID and the HTTP request ID.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := OperationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("operation.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// validID accepts 1 to maxIDLen ASCII letters, digits, hyphens and
// underscores.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// WithOperationID tags ctx with a conversion operation ID. Operation IDs are
// generated internally, so an invalid one is a programming error and panics.
func WithOperationID(ctx context.Context, id string) context.Context {
	if !validID(id) {
		panic("logging: invalid operation id " + id)
	}
	return context.WithValue(ctx, operationKey{}, id)
}

// OperationIDFromContext returns the operation ID set by WithOperationID.
func OperationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(operationKey{}).(string)
	return id
}

// WithRequestID tags ctx with an HTTP request ID. Request IDs may come from
// client headers; invalid ones are dropped.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, requestKey{}, id)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey{}).(string)
	return id
}
