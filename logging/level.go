package logging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"golang.org/x/text/cases"

	apperrors "github.com/leeforge/logfactory/errors"
)

// Level is a severity threshold. It is a zapcore.Level so zap levels can be
// passed directly.
type Level = zapcore.Level

const (
	DebugLevel    = zapcore.DebugLevel
	InfoLevel     = zapcore.InfoLevel
	WarnLevel     = zapcore.WarnLevel
	ErrorLevel    = zapcore.ErrorLevel
	CriticalLevel = zapcore.FatalLevel

	// NotSet marks a logger without its own level; the effective level is
	// inherited from the nearest ancestor that has one.
	NotSet = zapcore.InvalidLevel
)

// Numeric severities accepted in configuration files.
const (
	levelNoNotSet   = 0
	levelNoDebug    = 10
	levelNoInfo     = 20
	levelNoWarn     = 30
	levelNoError    = 40
	levelNoCritical = 50
)

var folder = cases.Fold()

var levelNames = map[string]Level{
	"notset":   NotSet,
	"debug":    DebugLevel,
	"info":     InfoLevel,
	"warn":     WarnLevel,
	"warning":  WarnLevel,
	"error":    ErrorLevel,
	"critical": CriticalLevel,
	"fatal":    CriticalLevel,
}

// ParseLevel converts a configured level to a Level. It accepts level names
// in any case, numeric severities (10, 20, ...) as numbers or strings, and
// zapcore.Level values. nil and the empty string mean NotSet.
func ParseLevel(v any) (Level, error) {
	switch t := v.(type) {
	case nil:
		return NotSet, nil
	case zapcore.Level:
		return t, nil
	case int:
		return levelFromNumber(t)
	case int64:
		return levelFromNumber(int(t))
	case uint64:
		return levelFromNumber(int(t))
	case float64:
		if t != math.Trunc(t) {
			return NotSet, invalidLevel(v)
		}
		return levelFromNumber(int(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return NotSet, nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return levelFromNumber(n)
		}
		if lvl, ok := levelNames[folder.String(s)]; ok {
			return lvl, nil
		}
		return NotSet, invalidLevel(v)
	default:
		return NotSet, invalidLevel(v)
	}
}

// MustParseLevel is ParseLevel for constants; it panics on invalid input.
func MustParseLevel(v any) Level {
	lvl, err := ParseLevel(v)
	if err != nil {
		panic(err)
	}
	return lvl
}

func levelFromNumber(n int) (Level, error) {
	switch n {
	case levelNoNotSet:
		return NotSet, nil
	case levelNoDebug:
		return DebugLevel, nil
	case levelNoInfo:
		return InfoLevel, nil
	case levelNoWarn:
		return WarnLevel, nil
	case levelNoError:
		return ErrorLevel, nil
	case levelNoCritical:
		return CriticalLevel, nil
	}
	return NotSet, invalidLevel(n)
}

func invalidLevel(v any) error {
	return apperrors.Newf(apperrors.ErrorTypeInvalid, "unknown level %v", v)
}

// LevelName returns the upper-case record name for level.
func LevelName(level Level) string {
	switch {
	case level == NotSet:
		return "NOTSET"
	case level <= DebugLevel:
		return "DEBUG"
	case level == InfoLevel:
		return "INFO"
	case level == WarnLevel:
		return "WARNING"
	case level == ErrorLevel:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}

// LevelNumber returns the numeric severity for level.
func LevelNumber(level Level) int {
	switch {
	case level == NotSet:
		return levelNoNotSet
	case level <= DebugLevel:
		return levelNoDebug
	case level == InfoLevel:
		return levelNoInfo
	case level == WarnLevel:
		return levelNoWarn
	case level == ErrorLevel:
		return levelNoError
	default:
		return levelNoCritical
	}
}

func formatLevel(level Level) string {
	if level == NotSet {
		return "NOTSET"
	}
	return fmt.Sprintf("%s(%d)", LevelName(level), LevelNumber(level))
}
