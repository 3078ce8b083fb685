package logging

import (
	"os"
	"strings"

	apperrors "github.com/leeforge/logfactory/errors"
)

// Apply installs cfg. Every handler is opened before the registry changes;
// if one fails the others are closed and the registry is left as it was.
//
// Loggers named in cfg, and the root when cfg.Root is set, get their level,
// propagation, filters and handlers replaced. Handlers they held before are
// closed. Existing loggers below a configured one are reset to inherit
// everything; other existing loggers are disabled when DisablesExisting
// reports true.
func (r *Registry) Apply(cfg *DictConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Incremental {
		return r.applyIncremental(cfg)
	}

	formatters, err := compileFormatters(cfg)
	if err != nil {
		return err
	}
	filters := compileFilters(cfg)

	built := make(map[string]*Handler, len(cfg.Handlers))
	for _, name := range sortedKeys(cfg.Handlers) {
		h, err := r.buildHandler(name, cfg.Handlers[name], formatters, filters)
		if err != nil {
			_ = closeHandlers(mapValues(built))
			return apperrors.Wrapf(err, apperrors.ErrorTypeApply, "handler %s", name)
		}
		built[name] = h
	}

	r.mu.Lock()
	var retired []*Handler

	existing := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		if _, configured := cfg.Loggers[name]; !configured {
			existing = append(existing, name)
		}
	}

	attached := make(map[*Handler]struct{}, len(built))
	install := func(e *loggerEntry, lc LoggerConfig) {
		retired = append(retired, e.handlers...)
		e.handlers = nil
		for _, hn := range lc.Handlers {
			h := built[hn]
			h.setRotationHook(r.notifyRotation)
			e.handlers = append(e.handlers, h)
			attached[h] = struct{}{}
		}
		e.filters = pickFilters(filters, lc.Filters)
		e.disabled = false
		if lc.Level != "" {
			// Validated while decoding.
			e.level, _ = ParseLevel(lc.Level)
		}
		if e != r.root {
			e.propagate = lc.Propagates()
		}
	}

	if cfg.Root != nil {
		install(r.root, *cfg.Root)
	}
	for _, name := range sortedKeys(cfg.Loggers) {
		install(r.entryLocked(name), cfg.Loggers[name])
	}

	for _, name := range existing {
		e := r.loggers[name]
		if underConfigured(name, cfg.Loggers) {
			retired = append(retired, e.handlers...)
			e.handlers = nil
			e.level = NotSet
			e.propagate = true
			e.disabled = false
			continue
		}
		e.disabled = cfg.DisablesExisting()
	}
	r.mu.Unlock()

	// Handlers no logger references would only hold files open.
	for name, h := range built {
		if _, ok := attached[h]; !ok {
			retired = append(retired, h)
			delete(built, name)
		}
	}
	return closeHandlers(unattached(retired, built))
}

// applyIncremental only adjusts levels and propagation of handlers and
// loggers that already exist.
func (r *Registry) applyIncremental(cfg *DictConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string][]*Handler)
	for _, h := range r.allHandlersLocked() {
		if h.name != "" {
			byName[h.name] = append(byName[h.name], h)
		}
	}
	for name, hc := range cfg.Handlers {
		hs, ok := byName[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeApply, "handler %s: not configured, cannot update incrementally", name)
		}
		if hc.Level == "" {
			continue
		}
		level, _ := ParseLevel(hc.Level)
		for _, h := range hs {
			h.SetLevel(level)
		}
	}

	update := func(e *loggerEntry, lc LoggerConfig) {
		if lc.Level != "" {
			e.level, _ = ParseLevel(lc.Level)
		}
		if e != r.root && lc.Propagate != nil {
			e.propagate = *lc.Propagate
		}
	}
	if cfg.Root != nil {
		update(r.root, *cfg.Root)
	}
	for name, lc := range cfg.Loggers {
		update(r.entryLocked(name), lc)
	}
	return nil
}

func compileFormatters(cfg *DictConfig) (map[string]*Formatter, error) {
	out := make(map[string]*Formatter, len(cfg.Formatters))
	for name, fc := range cfg.Formatters {
		f, err := NewFormatter(fc.Format, fc.DateFmt)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrorTypeShape, "formatters.%s", name)
		}
		out[name] = f
	}
	return out, nil
}

func compileFilters(cfg *DictConfig) map[string]Filter {
	out := make(map[string]Filter, len(cfg.Filters))
	for name, fc := range cfg.Filters {
		out[name] = NameFilter(fc.Name)
	}
	return out
}

func pickFilters(all map[string]Filter, names []string) []Filter {
	if len(names) == 0 {
		return nil
	}
	out := make([]Filter, 0, len(names))
	for _, n := range names {
		out = append(out, all[n])
	}
	return out
}

func (r *Registry) buildHandler(name string, hc HandlerConfig, formatters map[string]*Formatter, filters map[string]Filter) (*Handler, error) {
	level, err := ParseLevel(hc.Level)
	if err != nil {
		return nil, err
	}
	spec := HandlerSpec{
		Name:        name,
		Kind:        hc.Kind(),
		Level:       level,
		Formatter:   formatters[hc.Formatter],
		Filters:     pickFilters(filters, hc.Filters),
		Color:       hc.Color,
		Filename:    hc.Filename,
		Truncate:    strings.HasPrefix(hc.Mode, "w"),
		Encoding:    hc.Encoding,
		MaxBytes:    hc.MaxBytes,
		BackupCount: hc.BackupCount,
		When:        hc.When,
		Interval:    hc.Interval,
		UTC:         hc.UTC,
		Now:         r.now,
		Lumberjack: LumberjackOptions{
			MaxSize:    hc.MaxSize,
			MaxAge:     hc.MaxAge,
			MaxBackups: hc.BackupCount,
			Compress:   hc.Compress,
			UTC:        hc.UTC,
		},
	}
	if strings.HasSuffix(hc.Stream, "stdout") {
		spec.Stream = os.Stdout
	}
	return NewHandler(spec)
}

// underConfigured reports whether name is a descendant of a configured logger.
func underConfigured(name string, loggers map[string]LoggerConfig) bool {
	for parent := range loggers {
		if strings.HasPrefix(name, parent+".") {
			return true
		}
	}
	return false
}

// unattached drops handlers that cfg re-attached, so only detached ones close.
func unattached(retired []*Handler, built map[string]*Handler) []*Handler {
	fresh := make(map[*Handler]struct{}, len(built))
	for _, h := range built {
		fresh[h] = struct{}{}
	}
	seen := make(map[*Handler]struct{}, len(retired))
	out := retired[:0]
	for _, h := range retired {
		if _, ok := fresh[h]; ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func mapValues[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
