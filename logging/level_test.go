package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logfactory/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   any
		want Level
	}{
		{nil, NotSet},
		{"", NotSet},
		{"NOTSET", NotSet},
		{"debug", DebugLevel},
		{"Info", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{" ERROR ", ErrorLevel},
		{"critical", CriticalLevel},
		{"FATAL", CriticalLevel},
		{"20", InfoLevel},
		{10, DebugLevel},
		{int64(40), ErrorLevel},
		{float64(50), CriticalLevel},
		{uint64(30), WarnLevel},
		{zapcore.WarnLevel, WarnLevel},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, lvl, "%v", tt.in)
	}
}

func TestParseLevel_Invalid(t *testing.T) {
	for _, in := range []any{"verbose", 15, 20.5, true} {
		_, err := ParseLevel(in)
		assert.ErrorIs(t, err, apperrors.ErrInvalid, "%v", in)
	}
	assert.Panics(t, func() { MustParseLevel("loud") })
}

func TestLevelNameAndNumber(t *testing.T) {
	assert.Equal(t, "WARNING", LevelName(WarnLevel))
	assert.Equal(t, "CRITICAL", LevelName(CriticalLevel))
	assert.Equal(t, "NOTSET", LevelName(NotSet))
	assert.Equal(t, 40, LevelNumber(ErrorLevel))
	assert.Equal(t, 0, LevelNumber(NotSet))
	assert.Equal(t, "INFO(20)", formatLevel(InfoLevel))
}
