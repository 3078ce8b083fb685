package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, fields ...zap.Field)
	// Info logs a message at InfoLevel.
	Info(msg string, fields ...zap.Field)
	// Warn logs a message at WarnLevel.
	Warn(msg string, fields ...zap.Field)
	// Error logs a message at ErrorLevel.
	Error(msg string, fields ...zap.Field)
	// Critical logs a message at CriticalLevel and returns.
	Critical(msg string, fields ...zap.Field)
	// Fatal logs a message at CriticalLevel and then calls os.Exit(1).
	Fatal(msg string, fields ...zap.Field)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
	Fatalf(format string, args ...any)

	// With creates a child logger with additional fields.
	With(fields ...zap.Field) Logger
	// WithError creates a child logger with an error field.
	WithError(err error) Logger
	// Named creates a child logger with the given name suffix. The child
	// shares the parent's handlers; it is not a separate registry logger.
	Named(name string) Logger

	// Zap returns the underlying *zap.Logger.
	Zap() *zap.Logger
	// Sugar returns the underlying *zap.SugaredLogger.
	Sugar() *zap.SugaredLogger
	// Sync flushes any buffered log entries.
	Sync() error
}

// continueOnCritical lets FatalLevel entries through without exiting.
type continueOnCritical struct{}

func (continueOnCritical) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

// zapLogger wraps *zap.Logger to implement the Logger interface.
type zapLogger struct {
	zl   *zap.Logger
	sl   *zap.SugaredLogger
	crit *zap.Logger
}

func newZapLogger(zl *zap.Logger) Logger {
	return &zapLogger{
		zl:   zl,
		sl:   zl.Sugar(),
		crit: zl.WithOptions(zap.WithFatalHook(continueOnCritical{})),
	}
}

// FromZap wraps an existing *zap.Logger as a Logger.
func FromZap(zl *zap.Logger) Logger {
	return newZapLogger(zl)
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) {
	l.zl.Debug(msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...zap.Field) {
	l.zl.Info(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...zap.Field) {
	l.zl.Error(msg, fields...)
}

func (l *zapLogger) Critical(msg string, fields ...zap.Field) {
	l.crit.Fatal(msg, fields...)
}

func (l *zapLogger) Fatal(msg string, fields ...zap.Field) {
	l.zl.Fatal(msg, fields...)
}

func (l *zapLogger) Debugf(format string, args ...any) {
	l.sl.Debugf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...any) {
	l.sl.Infof(format, args...)
}

func (l *zapLogger) Warnf(format string, args ...any) {
	l.sl.Warnf(format, args...)
}

func (l *zapLogger) Errorf(format string, args ...any) {
	l.sl.Errorf(format, args...)
}

func (l *zapLogger) Criticalf(format string, args ...any) {
	l.crit.Sugar().Fatalf(format, args...)
}

func (l *zapLogger) Fatalf(format string, args ...any) {
	l.sl.Fatalf(format, args...)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return newZapLogger(l.zl.With(fields...))
}

func (l *zapLogger) WithError(err error) Logger {
	return newZapLogger(l.zl.With(zap.Error(err)))
}

func (l *zapLogger) Named(name string) Logger {
	return newZapLogger(l.zl.Named(name))
}

func (l *zapLogger) Zap() *zap.Logger {
	return l.zl
}

func (l *zapLogger) Sugar() *zap.SugaredLogger {
	return l.sl
}

func (l *zapLogger) Sync() error {
	return l.zl.Sync()
}

// Ensure zapLogger implements Logger.
var _ Logger = (*zapLogger)(nil)

// nopLogger is used when no diagnostics logger is configured.
var nopLogger = newZapLogger(zap.NewNop())
