package logging

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// bridgeScope names the instrumentation scope of bridged log records.
const bridgeScope = "github.com/fyrsmithlabs/git2pdf"

// withOTel tees local with an otelzap core writing to provider. The bridge
// honours the configured level; a nil provider leaves local untouched.
func withOTel(local zapcore.Core, level zapcore.LevelEnabler, provider log.LoggerProvider) zapcore.Core {
	if provider == nil {
		return local
	}
	bridge := otelzap.NewCore(bridgeScope, otelzap.WithLoggerProvider(provider))
	return zapcore.NewTee(local, levelGate{Core: bridge, pass: level.Enabled})
}
