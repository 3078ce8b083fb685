package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Configuration file errors
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeLoad              ErrorType = "load"

	// Configuration content errors
	ErrorTypeShape   ErrorType = "shape"
	ErrorTypeInvalid ErrorType = "invalid"

	// Runtime errors
	ErrorTypeApply   ErrorType = "apply"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Sentinels for errors.Is checks. They match any AppError of the same type.
var (
	ErrUnsupportedFormat = New(ErrorTypeUnsupportedFormat, "unsupported config format")
	ErrLoad              = New(ErrorTypeLoad, "config load failed")
	ErrShape             = New(ErrorTypeShape, "malformed config")
	ErrInvalid           = New(ErrorTypeInvalid, "invalid argument")
	ErrApply             = New(ErrorTypeApply, "config application failed")
)

// AppError represents a structured error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
}

// Error implements the error interface. The inner error text is always kept
// so the root cause survives any number of wraps.
func (e *AppError) Error() string {
	switch {
	case e.Message != "" && e.InnerError != nil:
		return e.Message + ": " + e.InnerError.Error()
	case e.Message != "":
		return e.Message
	case e.InnerError != nil:
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Is checks if this error is of a specific type
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		InnerError: err,
	}
}

// Wrap wraps an error with a specific type and message
func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
	}
}

// Wrapf wraps an error with a specific type and formatted message
func Wrapf(err error, errType ErrorType, format string, args ...any) *AppError {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the outermost AppError in the chain,
// or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As forwards to the standard library so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func captureStack(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return stack
}
