package logging

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logfactory/errors"
)

// HandlerKind identifies a handler implementation. A logger holds at most one
// handler per kind when handlers are attached through the Factory.
type HandlerKind string

const (
	KindConsole           HandlerKind = "console"
	KindFile              HandlerKind = "file"
	KindRotatingFile      HandlerKind = "rotating_file"
	KindTimedRotatingFile HandlerKind = "timed_rotating_file"
	KindLumberjack        HandlerKind = "lumberjack"
	KindNull              HandlerKind = "null"
)

// handlerClasses maps configuration class names to kinds.
var handlerClasses = map[string]HandlerKind{
	"logging.StreamHandler":                     KindConsole,
	"logging.FileHandler":                       KindFile,
	"logging.handlers.RotatingFileHandler":      KindRotatingFile,
	"logging.handlers.TimedRotatingFileHandler": KindTimedRotatingFile,
	"logging.NullHandler":                       KindNull,
	string(KindConsole):                         KindConsole,
	string(KindFile):                            KindFile,
	string(KindRotatingFile):                    KindRotatingFile,
	string(KindTimedRotatingFile):               KindTimedRotatingFile,
	string(KindLumberjack):                      KindLumberjack,
	string(KindNull):                            KindNull,
}

// KindForClass resolves a configured handler class.
func KindForClass(class string) (HandlerKind, bool) {
	kind, ok := handlerClasses[class]
	return kind, ok
}

func (k HandlerKind) writesFile() bool {
	switch k {
	case KindFile, KindRotatingFile, KindTimedRotatingFile, KindLumberjack:
		return true
	}
	return false
}

// HandlerSpec describes a handler to build. Fields that do not apply to
// Kind are ignored.
type HandlerSpec struct {
	Name      string
	Kind      HandlerKind
	Level     Level
	Formatter *Formatter
	Filters   []Filter

	// console
	Stream io.Writer
	Color  bool

	// file kinds
	Filename string
	Truncate bool
	Encoding string

	// rotating_file
	MaxBytes    int64
	BackupCount int

	// timed_rotating_file
	When     string
	Interval int
	UTC      bool
	Now      func() time.Time

	Lumberjack LumberjackOptions
}

// Handler writes records that pass its level and filters to one destination.
type Handler struct {
	name      string
	kind      HandlerKind
	target    string
	formatter *Formatter
	filters   []Filter
	core      zapcore.Core
	closer    io.Closer

	mu       sync.RWMutex
	level    Level
	onRotate func(HandlerKind)

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// HandlerInfo is a read-only view of an attached handler.
type HandlerInfo struct {
	Name   string
	Kind   HandlerKind
	Level  Level
	Target string
	Format string
}

var defaultFormatter = MustFormatter(DefaultFormat, "")

// allLevels lets every entry through; thresholds are checked by the Handler.
var allLevels = zap.LevelEnablerFunc(func(zapcore.Level) bool { return true })

// NewHandler opens the destination described by spec.
func NewHandler(spec HandlerSpec) (*Handler, error) {
	h := &Handler{
		name:      spec.Name,
		kind:      spec.Kind,
		level:     spec.Level,
		formatter: spec.Formatter,
		filters:   spec.Filters,
	}
	if h.formatter == nil {
		h.formatter = defaultFormatter
	}
	if spec.Kind.writesFile() && spec.Filename == "" {
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalid, "%s handler needs a filename", spec.Kind)
	}

	var (
		out    zapcore.WriteSyncer
		colors *LevelColors
		err    error
	)
	switch spec.Kind {
	case KindConsole:
		stream := spec.Stream
		if stream == nil {
			stream = os.Stderr
		}
		// Hide Sync: fsync on a terminal or pipe fails with EINVAL.
		out = zapcore.Lock(zapcore.AddSync(struct{ io.Writer }{stream}))
		h.target = streamName(stream)
		if spec.Color {
			c := DefaultLevelColors()
			colors = &c
		}
	case KindFile:
		var w *fileWriter
		if w, err = newFileWriter(spec.Filename, spec.Truncate); err == nil {
			out, h.closer = w, w
		}
	case KindRotatingFile:
		var w *sizeRotatingWriter
		if w, err = newSizeRotatingWriter(spec.Filename, spec.MaxBytes, spec.BackupCount, h.rotated); err == nil {
			out, h.closer = w, w
		}
	case KindTimedRotatingFile:
		var w *timedRotatingWriter
		if w, err = newTimedRotatingWriter(spec.Filename, spec.When, spec.Interval, spec.BackupCount, spec.UTC, spec.Now, h.rotated); err == nil {
			out, h.closer = w, w
		}
	case KindLumberjack:
		var w *lumberjackWriter
		if w, err = newLumberjackWriter(spec.Filename, spec.Lumberjack); err == nil {
			out, h.closer = w, w
		}
	case KindNull:
		out = zapcore.AddSync(io.Discard)
		h.target = "null"
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalid, "unknown handler kind %q", spec.Kind)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInvalid, "open %s handler", spec.Kind)
	}

	if spec.Kind.writesFile() {
		h.target = spec.Filename
		if out, err = withEncoding(out, spec.Encoding); err != nil {
			_ = h.Close()
			return nil, err
		}
	}

	h.core = zapcore.NewCore(newTemplateEncoder(h.formatter, colors), out, allLevels)
	return h, nil
}

func streamName(w io.Writer) string {
	switch w {
	case os.Stdout:
		return "stdout"
	case os.Stderr:
		return "stderr"
	}
	return "stream"
}

func (h *Handler) Kind() HandlerKind { return h.kind }

func (h *Handler) Name() string { return h.name }

// Level returns the handler threshold. NotSet passes every record.
func (h *Handler) Level() Level {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.level
}

// SetLevel changes the threshold of a live handler.
func (h *Handler) SetLevel(level Level) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

func (h *Handler) Info() HandlerInfo {
	return HandlerInfo{
		Name:   h.name,
		Kind:   h.kind,
		Level:  h.Level(),
		Target: h.target,
		Format: h.formatter.Format(),
	}
}

func (h *Handler) allows(ent zapcore.Entry) bool {
	if lvl := h.Level(); lvl != NotSet && ent.Level < lvl {
		return false
	}
	return passes(h.filters, ent)
}

// write drops records that race with Close: a reconfiguration retired the
// handler after the record was routed to it.
func (h *Handler) write(ent zapcore.Entry, fields []zapcore.Field) error {
	if h.closed.Load() || !h.allows(ent) {
		return nil
	}
	err := h.core.Write(ent, fields)
	if err != nil && errors.Is(err, os.ErrClosed) && h.closed.Load() {
		return nil
	}
	return err
}

func (h *Handler) setRotationHook(fn func(HandlerKind)) {
	h.mu.Lock()
	h.onRotate = fn
	h.mu.Unlock()
}

func (h *Handler) rotated() {
	h.mu.RLock()
	fn := h.onRotate
	h.mu.RUnlock()
	if fn != nil {
		fn(h.kind)
	}
}

func (h *Handler) Sync() error {
	return h.core.Sync()
}

// Close flushes and releases the destination. Console handlers never close
// the underlying stream. Close is safe to call more than once.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		if h.core != nil {
			_ = h.core.Sync()
		}
		if h.closer != nil {
			h.closeErr = h.closer.Close()
		}
	})
	return h.closeErr
}
