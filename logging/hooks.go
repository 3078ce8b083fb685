package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Hook is called for each record a registry logger accepts, before handlers
// run. Hook errors never block the record.
type Hook func(entry zapcore.Entry) error

// Filter decides whether a record is emitted.
type Filter func(entry zapcore.Entry) bool

// NameFilter allows records from the named logger and its descendants. An
// empty name allows everything.
func NameFilter(name string) Filter {
	if name == "" {
		return func(zapcore.Entry) bool { return true }
	}
	return func(entry zapcore.Entry) bool {
		return entry.LoggerName == name || strings.HasPrefix(entry.LoggerName, name+".")
	}
}

func passes(filters []Filter, entry zapcore.Entry) bool {
	for _, f := range filters {
		if !f(entry) {
			return false
		}
	}
	return true
}

func runHooks(hooks []Hook, entry zapcore.Entry) {
	for _, hook := range hooks {
		_ = hook(entry)
	}
}

// tapCore sits in front of a core, dropping records its filters reject and
// running hooks for the rest.
type tapCore struct {
	zapcore.Core
	filters []Filter
	hooks   []Hook
}

func (c *tapCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) || !passes(c.filters, entry) {
		return ce
	}
	return ce.AddCore(entry, c)
}

func (c *tapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	runHooks(c.hooks, entry)
	return c.Core.Write(entry, fields)
}

func (c *tapCore) With(fields []zapcore.Field) zapcore.Core {
	return &tapCore{Core: c.Core.With(fields), filters: c.filters, hooks: c.hooks}
}

func tap(logger Logger, filters []Filter, hooks []Hook) Logger {
	zl := logger.Zap().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &tapCore{Core: core, filters: filters, hooks: hooks}
	}))
	return newZapLogger(zl)
}

// WithHooks returns a handle on the same logger that also runs hooks for the
// records it emits. Other handles for that name are unaffected.
func WithHooks(logger Logger, hooks ...Hook) Logger {
	if len(hooks) == 0 {
		return logger
	}
	return tap(logger, nil, hooks)
}

// Filtered returns a handle on the same logger that only emits records
// accepted by every filter.
func Filtered(logger Logger, filters ...Filter) Logger {
	if len(filters) == 0 {
		return logger
	}
	return tap(logger, filters, nil)
}
