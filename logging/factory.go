package logging

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leeforge/logfactory/config"
	apperrors "github.com/leeforge/logfactory/errors"
	"github.com/leeforge/logfactory/loader"
	"github.com/leeforge/logfactory/metrics"
)

// Default settings of the Make* helpers.
const (
	DefaultMaxBytes     = 128
	DefaultBackupCount  = 0
	DefaultWhen         = "s"
	DefaultTimeInterval = 60
)

// Factory configures loggers in a Registry, either from configuration files
// or one handler at a time.
//
// The Make* methods are idempotent per logger and handler kind: when the
// logger already has a handler of that kind, nothing is opened and the
// existing configuration is kept, even if the arguments differ.
type Factory struct {
	mu       sync.Mutex
	registry *Registry
	loader   loader.Loader
	metrics  *metrics.LogMetrics
	diag     Logger
	settings *config.Config
}

// Option configures a Factory.
type Option func(*Factory)

// WithRegistry makes the factory manage reg instead of Default().
func WithRegistry(reg *Registry) Option {
	return func(f *Factory) { f.registry = reg }
}

// WithLoader replaces suffix-based loading in LoadConfig.
func WithLoader(l loader.Loader) Option {
	return func(f *Factory) { f.loader = l }
}

// WithMetrics counts records and rotations of the managed registry.
func WithMetrics(m *metrics.LogMetrics) Option {
	return func(f *Factory) { f.metrics = m }
}

// WithDiagnostics sets where the factory reports its own activity.
func WithDiagnostics(l Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.diag = l
		}
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{diag: nopLogger}
	for _, opt := range opts {
		opt(f)
	}
	if f.registry == nil {
		f.registry = Default()
	}
	if f.metrics != nil {
		m := f.metrics
		f.registry.AddHook(func(ent zapcore.Entry) error {
			name := ent.LoggerName
			if name == "" {
				name = RootLoggerName
			}
			m.Record(name, LevelName(ent.Level))
			return nil
		})
		f.registry.AddRotationHook(func(kind HandlerKind) {
			m.Rotation(string(kind))
		})
	}
	return f
}

func (f *Factory) Registry() *Registry { return f.registry }

// LoadConfig reads the file at path, creates the directories its handlers
// write into, and applies it. Any failure is an apply error that keeps the
// cause.
func (f *Factory) LoadConfig(path string) error {
	raw, err := f.load(path)
	if err == nil {
		err = f.applyDocument(raw)
	}
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeApply, "load config %s", path).
			WithDetail("path", path)
	}
	f.diag.Info("logging config applied", zap.String("path", path))
	return nil
}

func (f *Factory) load(path string) (map[string]any, error) {
	if f.loader != nil {
		return f.loader.Load(path)
	}
	return loader.Load(path)
}

func (f *Factory) applyDocument(raw map[string]any) error {
	if err := EnsureDirectories(raw); err != nil {
		return err
	}
	cfg, err := DecodeDictConfig(raw)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry.Apply(cfg)
}

// LoadSettings applies a logging configuration assembled from layered
// settings files. The configuration is read from the "logging" key when
// present, otherwise from the whole document. Settings keys are lower case,
// so handler and logger names must be too. With opts.WatchAble the
// configuration is re-applied whenever one of the files changes.
func (f *Factory) LoadSettings(opts config.Options) error {
	ready := make(chan struct{})
	var settings *config.Config

	if opts.WatchAble {
		onChange := opts.OnChange
		opts.OnChange = func(e fsnotify.Event) {
			<-ready
			if err := f.applySettings(settings); err != nil {
				f.diag.Error("reload logging settings", zap.String("file", e.Name), zap.Error(err))
			} else {
				f.diag.Info("logging settings reloaded", zap.String("file", e.Name))
			}
			if onChange != nil {
				onChange(e)
			}
		}
		onError := opts.OnError
		opts.OnError = func(err error) {
			f.diag.Error("watch logging settings", zap.Error(err))
			if onError != nil {
				onError(err)
			}
		}
	}

	settings, err := config.New(opts)
	close(ready)
	if err == nil {
		err = f.applySettings(settings)
		if err != nil {
			_ = settings.Close()
		}
	}
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeApply, "load settings %s/%s", opts.BasePath, opts.FileName)
	}

	f.mu.Lock()
	prev := f.settings
	f.settings = settings
	f.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func (f *Factory) applySettings(settings *config.Config) error {
	doc := settings.AllSettings()
	if sub, ok := doc["logging"].(map[string]any); ok {
		doc = sub
	}
	return f.applyDocument(doc)
}

// GetLogger returns the named logger, creating it if needed.
func (f *Factory) GetLogger(name string) Logger {
	return f.registry.Logger(name)
}

// HandlerOption adjusts a handler built by a Make* method.
type HandlerOption func(*HandlerSpec)

// WithMaxBytes sets the size that triggers rotation. Zero never rotates.
func WithMaxBytes(n int64) HandlerOption {
	return func(s *HandlerSpec) { s.MaxBytes = n }
}

// WithBackupCount sets how many rotated files are kept.
func WithBackupCount(n int) HandlerOption {
	return func(s *HandlerSpec) { s.BackupCount = n }
}

// WithWhen sets the rotation unit: S, M, H, D, MIDNIGHT or W0-W6.
func WithWhen(when string) HandlerOption {
	return func(s *HandlerSpec) { s.When = when }
}

// WithInterval sets how many units pass between rotations.
func WithInterval(n int) HandlerOption {
	return func(s *HandlerSpec) { s.Interval = n }
}

// WithUTC computes rotation times and suffixes in UTC.
func WithUTC(utc bool) HandlerOption {
	return func(s *HandlerSpec) { s.UTC = utc }
}

// WithEncoding transcodes file output to the named charset.
func WithEncoding(name string) HandlerOption {
	return func(s *HandlerSpec) { s.Encoding = name }
}

// WithFilters adds handler filters.
func WithFilters(filters ...Filter) HandlerOption {
	return func(s *HandlerSpec) { s.Filters = append(s.Filters, filters...) }
}

// WithColor colors level names on a console handler.
func WithColor(color bool) HandlerOption {
	return func(s *HandlerSpec) { s.Color = color }
}

// MakeConsole attaches a stderr handler to name.
func (f *Factory) MakeConsole(name string, level Level, format string, opts ...HandlerOption) (Logger, error) {
	return f.attach(name, HandlerSpec{Kind: KindConsole, Level: level}, format, opts)
}

// MakeFile attaches a handler appending to path.
func (f *Factory) MakeFile(name, path string, level Level, format string, opts ...HandlerOption) (Logger, error) {
	return f.attach(name, HandlerSpec{Kind: KindFile, Level: level, Filename: path}, format, opts)
}

// MakeRotatingFile attaches a size-rotating handler. It defaults to 128
// bytes and no backups, in which case the file is never rotated.
func (f *Factory) MakeRotatingFile(name, path string, level Level, format string, opts ...HandlerOption) (Logger, error) {
	spec := HandlerSpec{
		Kind:        KindRotatingFile,
		Level:       level,
		Filename:    path,
		MaxBytes:    DefaultMaxBytes,
		BackupCount: DefaultBackupCount,
	}
	return f.attach(name, spec, format, opts)
}

// MakeTimeRotatingFile attaches a time-rotating handler. It defaults to a
// rotation every 60 seconds keeping all backups.
func (f *Factory) MakeTimeRotatingFile(name, path string, level Level, format string, opts ...HandlerOption) (Logger, error) {
	spec := HandlerSpec{
		Kind:        KindTimedRotatingFile,
		Level:       level,
		Filename:    path,
		BackupCount: DefaultBackupCount,
		When:        DefaultWhen,
		Interval:    DefaultTimeInterval,
	}
	return f.attach(name, spec, format, opts)
}

// MakeLumberjack attaches a megabyte-granular rotating handler.
func (f *Factory) MakeLumberjack(name, path string, level Level, format string, lj LumberjackOptions) (Logger, error) {
	return f.attach(name, HandlerSpec{Kind: KindLumberjack, Level: level, Filename: path, Lumberjack: lj}, format, nil)
}

func (f *Factory) attach(name string, spec HandlerSpec, format string, opts []HandlerOption) (Logger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lg := f.registry.Logger(name)
	if f.registry.HasHandler(name, spec.Kind) {
		f.diag.Debug("handler already attached, keeping it",
			zap.String("logger", name), zap.String("kind", string(spec.Kind)))
		return lg, nil
	}

	for _, opt := range opts {
		opt(&spec)
	}
	formatter, err := NewFormatter(format, "")
	if err != nil {
		return nil, err
	}
	spec.Formatter = formatter
	if spec.Now == nil {
		spec.Now = f.registry.now
	}

	h, err := NewHandler(spec)
	if err != nil {
		return nil, err
	}
	if !f.registry.Attach(name, h) {
		_ = h.Close()
	}
	return lg, nil
}

// Loggers lists the loggers that have at least one handler.
func (f *Factory) Loggers() []string {
	var names []string
	for _, name := range f.registry.Loggers() {
		if len(f.registry.Handlers(name)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Describe renders the logger tree of the managed registry.
func (f *Factory) Describe() string {
	return f.registry.Describe()
}

// Close stops watching settings and closes every handler.
func (f *Factory) Close() error {
	f.mu.Lock()
	settings := f.settings
	f.settings = nil
	f.mu.Unlock()

	if settings != nil {
		_ = settings.Close()
	}
	return f.registry.Close()
}
