package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/logfactory/errors"
)

func TestDecodeDictConfig_FullDocument(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"formatters": map[string]any{
			"simple": map[string]any{"format": "%(levelname)s %(message)s", "datefmt": "%H:%M"},
		},
		"filters": map[string]any{
			"only_app": map[string]any{"name": "app"},
		},
		"handlers": map[string]any{
			"rotating": map[string]any{
				"class":        "logging.handlers.RotatingFileHandler",
				"level":        "INFO",
				"formatter":    "simple",
				"filename":     "logs/app.log",
				"maxBytes":     "1024",
				"backup_count": 3,
				"filters":      []any{"only_app"},
			},
			"console": map[string]any{
				"class":  "logging.StreamHandler",
				"stream": "ext://sys.stdout",
				"level":  20,
			},
		},
		"loggers": map[string]any{
			"app": map[string]any{"level": "DEBUG", "handlers": []any{"rotating"}, "propagate": false},
		},
		"root": map[string]any{"level": "WARNING", "handlers": []any{"console"}},
	}

	cfg, err := DecodeDictConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, cfg.DisablesExisting())

	h := cfg.Handlers["rotating"]
	assert.Equal(t, KindRotatingFile, h.Kind())
	assert.Equal(t, int64(1024), h.MaxBytes)
	assert.Equal(t, 3, h.BackupCount)
	assert.Equal(t, "a", h.Mode)
	assert.Equal(t, "h", h.When)
	assert.Equal(t, 1, h.Interval)
	assert.Equal(t, []string{"only_app"}, h.Filters)

	assert.Equal(t, "20", cfg.Handlers["console"].Level)
	assert.False(t, cfg.Loggers["app"].Propagates())
	require.NotNil(t, cfg.Root)
	assert.True(t, cfg.Root.Propagates())
	assert.Equal(t, "%H:%M", cfg.Formatters["simple"].DateFmt)
}

func TestDecodeDictConfig_ShapeErrors(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"version": 1,
			"handlers": map[string]any{
				"h": map[string]any{"class": "logging.StreamHandler"},
			},
		}
	}
	handler := func(raw map[string]any) map[string]any {
		return raw["handlers"].(map[string]any)["h"].(map[string]any)
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing version", func(m map[string]any) { delete(m, "version") }, "version"},
		{"wrong version", func(m map[string]any) { m["version"] = 2 }, "version"},
		{"missing class", func(m map[string]any) { delete(handler(m), "class") }, "handlers.h.class"},
		{"unknown class", func(m map[string]any) { handler(m)["class"] = "logging.SMTPHandler" }, "handlers[h].class"},
		{"bad level", func(m map[string]any) { handler(m)["level"] = "LOUD" }, "handlers[h].level"},
		{"bad when", func(m map[string]any) { handler(m)["when"] = "fortnight" }, "handlers[h].when"},
		{"bad mode", func(m map[string]any) { handler(m)["mode"] = "x" }, "handlers[h].mode"},
		{"negative backups", func(m map[string]any) { handler(m)["backupCount"] = -1 }, "handlers[h].backup_count"},
		{"unknown formatter", func(m map[string]any) { handler(m)["formatter"] = "nope" }, "handlers.h.formatter"},
		{"unknown handler filter", func(m map[string]any) { handler(m)["filters"] = []any{"nope"} }, "handlers.h.filters"},
		{"file without filename", func(m map[string]any) { handler(m)["class"] = "logging.FileHandler" }, "handlers.h.filename"},
		{"bad format", func(m map[string]any) {
			m["formatters"] = map[string]any{"f": map[string]any{"format": "%(thread)d"}}
		}, "formatters.f.format"},
		{"unknown logger handler", func(m map[string]any) {
			m["loggers"] = map[string]any{"app": map[string]any{"handlers": []any{"missing"}}}
		}, "loggers.app.handlers"},
		{"unknown root filter", func(m map[string]any) {
			m["root"] = map[string]any{"filters": []any{"missing"}}
		}, "root.filters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := base()
			tt.mutate(raw)

			_, err := DecodeDictConfig(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrShape)
			appErr := apperrors.FromError(err)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestDecodeDictConfig_DecodeFailures(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown key":         {"version": 1, "handlers": map[string]any{"h": map[string]any{"class": "null", "colour": true}}},
		"handler not mapping": {"version": 1, "handlers": map[string]any{"h": "console"}},
		"wrong type":          {"version": "one"},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDictConfig(raw)
			assert.ErrorIs(t, err, apperrors.ErrShape)
		})
	}
}

func TestDecodeDictConfig_Incremental(t *testing.T) {
	cfg, err := DecodeDictConfig(map[string]any{
		"version":     1,
		"incremental": true,
		"handlers":    map[string]any{"h": map[string]any{"level": "ERROR"}},
	})
	require.NoError(t, err)
	assert.True(t, cfg.Incremental)
}

func TestKindForClass(t *testing.T) {
	for class, want := range map[string]HandlerKind{
		"logging.StreamHandler":                     KindConsole,
		"logging.FileHandler":                       KindFile,
		"logging.handlers.RotatingFileHandler":      KindRotatingFile,
		"logging.handlers.TimedRotatingFileHandler": KindTimedRotatingFile,
		"logging.NullHandler":                       KindNull,
		"lumberjack":                                KindLumberjack,
	} {
		got, ok := KindForClass(class)
		assert.True(t, ok, class)
		assert.Equal(t, want, got, class)
	}
	_, ok := KindForClass("logging.handlers.SysLogHandler")
	assert.False(t, ok)
}
