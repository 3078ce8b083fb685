package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logfactory/errors"
)

func encode(t *testing.T, f *Formatter, colors *LevelColors, ent zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := newTemplateEncoder(f, colors).EncodeEntry(ent, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

var sampleTime = time.Date(2024, time.January, 2, 3, 4, 5, 678000000, time.UTC)

func TestFormatter_Placeholders(t *testing.T) {
	ent := zapcore.Entry{
		LoggerName: "svc.db",
		Level:      zapcore.WarnLevel,
		Message:    "slow query",
		Time:       sampleTime,
		Caller: zapcore.EntryCaller{
			Defined:  true,
			File:     "/src/app/store/query.go",
			Line:     42,
			Function: "github.com/acme/app/store.(*Store).Query",
		},
	}

	tests := []struct {
		format string
		want   string
	}{
		{"%(message)s", "slow query"},
		{"%(name)s:%(levelname)s:%(message)s", "svc.db:WARNING:slow query"},
		{"[%(levelname)-8s] %(message)s", "[WARNING ] slow query"},
		{"%(levelno)d", "30"},
		{"%(asctime)s", "2024-01-02 03:04:05,678"},
		{"%(msecs)03d", "678"},
		{"%(filename)s:%(lineno)d", "query.go:42"},
		{"%(module)s.%(funcName)s", "query.Query"},
		{"%(pathname)s", "/src/app/store/query.go"},
		{"100%% %(message)s", "100% slow query"},
		{"%(message)r", `"slow query"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := NewFormatter(tt.format, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", encode(t, f, nil, ent))
		})
	}
}

func TestFormatter_DefaultsAndRoot(t *testing.T) {
	f, err := NewFormatter("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, f.Format())

	root := MustFormatter("%(name)s %(message)s", "")
	assert.Equal(t, "root hello\n", encode(t, root, nil, zapcore.Entry{Message: "hello"}))
}

func TestFormatter_DateFormat(t *testing.T) {
	f := MustFormatter("%(asctime)s %(message)s", "%d/%m/%Y %H:%M")
	got := encode(t, f, nil, zapcore.Entry{Message: "m", Time: sampleTime})
	assert.Equal(t, "02/01/2024 03:04 m\n", got)
}

func TestFormatter_UnknownAttribute(t *testing.T) {
	_, err := NewFormatter("%(thread)d %(message)s", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
	assert.Contains(t, err.Error(), "thread")

	assert.Panics(t, func() { MustFormatter("%(nope)s", "") })
}

func TestTemplateEncoder_AppendsFields(t *testing.T) {
	f := MustFormatter("%(message)s", "")
	got := encode(t, f, nil, zapcore.Entry{Message: "login"},
		zap.String("user", "ada"), zap.Int("attempt", 2))
	assert.Equal(t, `login {"user":"ada","attempt":2}`+"\n", got)
}

func TestTemplateEncoder_ContextFieldsSurviveClone(t *testing.T) {
	enc := newTemplateEncoder(MustFormatter("%(message)s", ""), nil)
	enc.AddString("request", "r-1")
	clone := enc.Clone()

	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "done"}, []zapcore.Field{zap.Bool("ok", true)})
	require.NoError(t, err)
	defer buf.Free()
	assert.Equal(t, `done {"request":"r-1","ok":true}`+"\n", buf.String())
}

func TestTemplateEncoder_Stack(t *testing.T) {
	f := MustFormatter("%(message)s", "")
	got := encode(t, f, nil, zapcore.Entry{Message: "boom", Stack: "main.main\n\tmain.go:1"})
	assert.Equal(t, "boom\nmain.main\n\tmain.go:1\n", got)
}

func TestTemplateEncoder_Colors(t *testing.T) {
	f := MustFormatter("%(levelname)s %(message)s", "")
	colors := DefaultLevelColors()
	got := encode(t, f, &colors, zapcore.Entry{Level: zapcore.ErrorLevel, Message: "x"})
	assert.True(t, strings.HasPrefix(got, Red+"ERROR"+Reset), got)
}
