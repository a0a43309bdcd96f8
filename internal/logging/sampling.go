package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples debug and info entries. Warnings and errors, such as
// unreadable files or failed conversions, always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	chatty := levelGate{Core: core, pass: func(l zapcore.Level) bool { return l < zapcore.WarnLevel }}
	important := levelGate{Core: core, pass: func(l zapcore.Level) bool { return l >= zapcore.WarnLevel }}
	return zapcore.NewTee(
		zapcore.NewSamplerWithOptions(chatty, cfg.Tick, cfg.Initial, cfg.Thereafter),
		important,
	)
}

// levelGate restricts a core to the levels accepted by pass.
type levelGate struct {
	zapcore.Core
	pass func(zapcore.Level) bool
}

func (g levelGate) Enabled(l zapcore.Level) bool {
	return g.pass(l) && g.Core.Enabled(l)
}

func (g levelGate) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if g.Enabled(e.Level) {
		return g.Core.Check(e, ce)
	}
	return ce
}

func (g levelGate) With(fields []zapcore.Field) zapcore.Core {
	return levelGate{Core: g.Core.With(fields), pass: g.pass}
}
