// Package telemetry installs OpenTelemetry providers for git2pdf.
//
// With telemetry disabled, Tracer falls back to the otel global, which is a
// no-op, so instrumented packages never branch on configuration. Enabled
// telemetry exports spans over OTLP/gRPC, plus metrics and zap log records
// when configured.
//
// Tests record spans in memory:
//
//	tel := telemetry.NewTestTelemetry()
//	svc, _ := converter.NewService(store, logger, converter.WithTracer(tel.Tracer("test")))
//	svc.Convert(ctx, "https://github.com/acme/widgets")
//	tel.AssertSpanExists(t, "convert.fetch")
package telemetry
