package logging

import (
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// registryCore routes entries through a registry logger. Handler sets are read
// at write time, so handles created before a handler was attached still reach
// it.
type registryCore struct {
	reg    *Registry
	entry  *loggerEntry
	fields []zapcore.Field
}

func (c *registryCore) Enabled(level zapcore.Level) bool {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.reg.enabledLocked(c.entry, level)
}

func (c *registryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &registryCore{reg: c.reg, entry: c.entry, fields: merged}
}

func (c *registryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write applies the logger filters, then hands the entry to the logger's
// handlers and to each ancestor's handlers until propagation stops.
func (c *registryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if len(c.fields) > 0 {
		all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
		all = append(all, c.fields...)
		fields = append(all, fields...)
	}

	handlers, hooks, ok := c.route(ent)
	if !ok {
		return nil
	}
	runHooks(hooks, ent)

	var err error
	for _, h := range handlers {
		err = multierr.Append(err, h.write(ent, fields))
	}
	return err
}

// route snapshots the hooks and the handlers an entry reaches. Handlers and
// hooks run after the registry lock is released, so they may call back into
// the registry.
func (c *registryCore) route(ent zapcore.Entry) ([]*Handler, []Hook, bool) {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	if c.entry.disabled || !passes(c.entry.filters, ent) {
		return nil, nil, false
	}
	var handlers []*Handler
	for e := c.entry; e != nil; e = c.reg.parentLocked(e) {
		handlers = append(handlers, e.handlers...)
		if !e.propagate {
			break
		}
	}
	return handlers, c.reg.hooks, true
}

func (c *registryCore) Sync() error {
	return c.reg.Sync()
}
