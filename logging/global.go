package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	globalLogger Logger
	globalHelper Logger
	globalMu     sync.RWMutex

	defaultFactory     *Factory
	defaultFactoryOnce sync.Once
)

// DefaultFactory returns the factory that manages Default().
func DefaultFactory() *Factory {
	defaultFactoryOnce.Do(func() {
		defaultFactory = NewFactory(WithRegistry(Default()))
	})
	return defaultFactory
}

// GetLogger returns a logger from the default registry.
func GetLogger(name string) Logger {
	return DefaultFactory().GetLogger(name)
}

// LoadConfig applies a configuration file to the default registry.
func LoadConfig(path string) error {
	return DefaultFactory().LoadConfig(path)
}

// Global returns the logger used by the package-level helpers: the root
// logger of the default registry unless SetGlobal replaced it.
func Global() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	return Default().Logger(RootLoggerName)
}

// SetGlobal replaces the global logger. nil restores the default root logger.
func SetGlobal(logger Logger) {
	var helper Logger
	if logger != nil {
		helper = skipFrame(logger)
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger, globalHelper = logger, helper
}

// skipFrame hides one more stack frame so records logged through the
// package helpers report the helper's caller.
func skipFrame(logger Logger) Logger {
	return newZapLogger(logger.Zap().WithOptions(zap.AddCallerSkip(1)))
}

var defaultHelper = sync.OnceValue(func() Logger {
	return skipFrame(Default().Logger(RootLoggerName))
})

func helper() Logger {
	globalMu.RLock()
	h := globalHelper
	globalMu.RUnlock()
	if h != nil {
		return h
	}
	return defaultHelper()
}

// Package-level helpers that delegate to the global logger.

func Debug(msg string, fields ...zap.Field) {
	helper().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	helper().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	helper().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	helper().Error(msg, fields...)
}

func Critical(msg string, fields ...zap.Field) {
	helper().Critical(msg, fields...)
}

// Fatal logs at CriticalLevel and exits.
func Fatal(msg string, fields ...zap.Field) {
	helper().Fatal(msg, fields...)
}

func Debugf(format string, args ...any) {
	helper().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	helper().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	helper().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	helper().Errorf(format, args...)
}

// With creates a child logger from the global logger with additional fields.
func With(fields ...zap.Field) Logger {
	return Global().With(fields...)
}

// Sync flushes every handler of the default registry.
func Sync() error {
	return Default().Sync()
}
