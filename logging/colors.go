package logging

import "go.uber.org/zap/zapcore"

// Color represents a terminal ANSI color escape code.
type Color = string

const Reset Color = "\033[0m"

// Foreground colors
const (
	Red    Color = "\033[31m"
	Green  Color = "\033[32m"
	Yellow Color = "\033[33m"
	Blue   Color = "\033[34m"
	Purple Color = "\033[35m"
	Cyan   Color = "\033[36m"
	White  Color = "\033[37m"
	Gray   Color = "\033[90m"
)

// Bold foreground colors
const (
	BoldRed    Color = "\033[1;31m"
	BoldGreen  Color = "\033[1;32m"
	BoldYellow Color = "\033[1;33m"
	BoldWhite  Color = "\033[1;37m"
)

// Background colors
const (
	BgRed Color = "\033[41m"
)

// Colorize wraps text with the given color and reset code.
func Colorize(color Color, text string) string {
	if color == "" {
		return text
	}
	return color + text + Reset
}

// Combine combines multiple colors/styles into one.
// Example: Combine(BoldWhite, BgRed) for bold white text on red background.
func Combine(colors ...Color) Color {
	var result Color
	for _, c := range colors {
		result += c
	}
	return result
}

// LevelColors maps levels to the color used for the level name on consoles.
// Zero values fall back to the defaults.
type LevelColors struct {
	Debug    Color
	Info     Color
	Warn     Color
	Error    Color
	Critical Color
}

// DefaultLevelColors returns the scheme used when a console handler enables color.
func DefaultLevelColors() LevelColors {
	return LevelColors{
		Debug:    Gray,
		Info:     Green,
		Warn:     Yellow,
		Error:    Red,
		Critical: Combine(BoldWhite, BgRed),
	}
}

// For returns the color for level.
func (c LevelColors) For(level zapcore.Level) Color {
	d := DefaultLevelColors()
	switch {
	case level <= zapcore.DebugLevel:
		return withDefault(c.Debug, d.Debug)
	case level == zapcore.InfoLevel:
		return withDefault(c.Info, d.Info)
	case level == zapcore.WarnLevel:
		return withDefault(c.Warn, d.Warn)
	case level == zapcore.ErrorLevel:
		return withDefault(c.Error, d.Error)
	default:
		return withDefault(c.Critical, d.Critical)
	}
}

func withDefault(value, defaultValue Color) Color {
	if value == "" {
		return defaultValue
	}
	return value
}
