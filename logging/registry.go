package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RootLoggerName is the name of the logger at the top of the hierarchy.
const RootLoggerName = "root"

// loggerEntry is the shared state behind every handle for one name.
type loggerEntry struct {
	name      string
	level     Level
	propagate bool
	disabled  bool
	handlers  []*Handler
	filters   []Filter
	handle    Logger
}

// Registry owns named loggers and the handlers attached to them. Loggers form
// a dotted hierarchy: "a.b" forwards records to "a", which forwards to the
// root, for as long as propagation is enabled.
type Registry struct {
	mu          sync.RWMutex
	root        *loggerEntry
	loggers     map[string]*loggerEntry
	hooks       []Hook
	now         func() time.Time

	rotateMu    sync.RWMutex
	rotateHooks []func(HandlerKind)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the clock used by time-rotating handlers the registry builds.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry returns an empty registry whose root logger passes DEBUG and up.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		loggers: make(map[string]*loggerEntry),
		now:     time.Now,
	}
	r.root = &loggerEntry{name: RootLoggerName, level: DebugLevel, propagate: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry. It is created on first use and
// never replaced.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func isRoot(name string) bool {
	return name == "" || name == RootLoggerName
}

// Logger returns the handle for name, creating the logger on first use. An
// empty name or "root" selects the root logger.
func (r *Registry) Logger(name string) Logger {
	r.mu.RLock()
	e := r.lookupLocked(name)
	r.mu.RUnlock()
	if e != nil && e.handle != nil {
		return e.handle
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(name).handle
}

func (r *Registry) lookupLocked(name string) *loggerEntry {
	if isRoot(name) {
		return r.root
	}
	return r.loggers[name]
}

// entryLocked gets or creates the entry for name. Callers hold the write lock.
func (r *Registry) entryLocked(name string) *loggerEntry {
	e := r.lookupLocked(name)
	if e == nil {
		e = &loggerEntry{name: name, level: NotSet, propagate: true}
		r.loggers[name] = e
	}
	if e.handle == nil {
		e.handle = r.newHandle(e)
	}
	return e
}

func (r *Registry) newHandle(e *loggerEntry) Logger {
	zl := zap.New(&registryCore{reg: r, entry: e},
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	if e != r.root {
		zl = zl.Named(e.name)
	}
	return newZapLogger(zl)
}

// parentLocked returns the nearest existing ancestor of e, or nil for the root.
func (r *Registry) parentLocked(e *loggerEntry) *loggerEntry {
	if e == r.root {
		return nil
	}
	name := e.name
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return r.root
		}
		name = name[:i]
		if p, ok := r.loggers[name]; ok {
			return p
		}
	}
}

// effectiveLevelLocked walks up the hierarchy to the first logger with its
// own level.
func (r *Registry) effectiveLevelLocked(e *loggerEntry) Level {
	for ; e != nil; e = r.parentLocked(e) {
		if e.level != NotSet {
			return e.level
		}
	}
	return NotSet
}

func (r *Registry) enabledLocked(e *loggerEntry, level Level) bool {
	if e.disabled {
		return false
	}
	lvl := r.effectiveLevelLocked(e)
	return lvl == NotSet || level >= lvl
}

// SetLevel sets the level of the named logger. NotSet makes it inherit.
func (r *Registry) SetLevel(name string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(name).level = level
}

// EffectiveLevel returns the level that governs records logged to name.
func (r *Registry) EffectiveLevel(name string) Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.effectiveLevelLocked(r.entryLocked(name))
}

// SetPropagate controls whether records reach ancestor handlers.
func (r *Registry) SetPropagate(name string, propagate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(name).propagate = propagate
}

// Disabled reports whether name was switched off by a configuration.
func (r *Registry) Disabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.lookupLocked(name)
	return e != nil && e.disabled
}

// AddFilter attaches a logger-level filter. It only sees records logged
// directly to name, not those propagated from descendants.
func (r *Registry) AddFilter(name string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(name)
	e.filters = append(e.filters, f)
}

// AddHook registers a hook run for every accepted record.
func (r *Registry) AddHook(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// AddRotationHook registers fn to run after any attached handler rotates.
func (r *Registry) AddRotationHook(fn func(HandlerKind)) {
	r.rotateMu.Lock()
	defer r.rotateMu.Unlock()
	r.rotateHooks = append(r.rotateHooks, fn)
}

// notifyRotation runs on the writing goroutine. It must not take r.mu.
func (r *Registry) notifyRotation(kind HandlerKind) {
	r.rotateMu.RLock()
	hooks := r.rotateHooks
	r.rotateMu.RUnlock()
	for _, fn := range hooks {
		fn(kind)
	}
}

// HasHandler reports whether name already has a handler of kind.
func (r *Registry) HasHandler(name string, kind HandlerKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.lookupLocked(name)
	return e != nil && hasKind(e.handlers, kind)
}

func hasKind(handlers []*Handler, kind HandlerKind) bool {
	for _, h := range handlers {
		if h.kind == kind {
			return true
		}
	}
	return false
}

// Attach adds h to the named logger unless it already has a handler of the
// same kind. It returns false, leaving h untouched, in that case.
func (r *Registry) Attach(name string, h *Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(name)
	if hasKind(e.handlers, h.kind) {
		return false
	}
	h.setRotationHook(r.notifyRotation)
	e.handlers = append(e.handlers, h)
	return true
}

// Handlers describes the handlers attached directly to name.
func (r *Registry) Handlers(name string) []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(name)
	if e == nil {
		return nil
	}
	infos := make([]HandlerInfo, 0, len(e.handlers))
	for _, h := range e.handlers {
		infos = append(infos, h.Info())
	}
	return infos
}

// Loggers lists every known logger name, root first, the rest sorted.
func (r *Registry) Loggers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{RootLoggerName}, names...)
}

// Describe renders the logger tree with levels and handlers.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.Loggers() {
		r.mu.RLock()
		e := r.lookupLocked(name)
		fmt.Fprintf(&b, "%s level=%s propagate=%t", name, formatLevel(e.level), e.propagate)
		if e.disabled {
			b.WriteString(" disabled")
		}
		b.WriteByte('\n')
		for _, h := range e.handlers {
			info := h.Info()
			fmt.Fprintf(&b, "  %s level=%s target=%s format=%q\n",
				info.Kind, formatLevel(info.Level), info.Target, info.Format)
		}
		r.mu.RUnlock()
	}
	return b.String()
}

func (r *Registry) allHandlersLocked() []*Handler {
	handlers := append([]*Handler(nil), r.root.handlers...)
	for _, e := range r.loggers {
		handlers = append(handlers, e.handlers...)
	}
	return handlers
}

// Sync flushes every attached handler.
func (r *Registry) Sync() error {
	r.mu.RLock()
	handlers := r.allHandlersLocked()
	r.mu.RUnlock()

	var err error
	for _, h := range handlers {
		err = multierr.Append(err, h.Sync())
	}
	return err
}

// Close detaches and closes every handler. Loggers stay usable and emit
// nothing until handlers are attached again.
func (r *Registry) Close() error {
	r.mu.Lock()
	handlers := r.allHandlersLocked()
	r.root.handlers = nil
	for _, e := range r.loggers {
		e.handlers = nil
	}
	r.mu.Unlock()

	return closeHandlers(handlers)
}

func closeHandlers(handlers []*Handler) error {
	var err error
	for _, h := range handlers {
		err = multierr.Append(err, h.Close())
	}
	return err
}

var _ zapcore.Core = (*registryCore)(nil)
