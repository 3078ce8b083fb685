package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/logfactory/errors"
)

const yamlDoc = `version: 1
disable_existing_loggers: false
formatters:
  simple:
    format: "%(asctime)s - %(name)s - %(levelname)s - %(message)s"
handlers:
  file:
    class: logging.handlers.RotatingFileHandler
    level: INFO
    formatter: simple
    filename: logs/run.log
    maxBytes: 1024
    backupCount: 3
loggers:
  svc:
    level: DEBUG
    handlers: [file]
    propagate: false
root:
  level: WARNING
  handlers: []
`

const jsonDoc = `{
  "version": 1,
  "disable_existing_loggers": false,
  "formatters": {
    "simple": {"format": "%(asctime)s - %(name)s - %(levelname)s - %(message)s"}
  },
  "handlers": {
    "file": {
      "class": "logging.handlers.RotatingFileHandler",
      "level": "INFO",
      "formatter": "simple",
      "filename": "logs/run.log",
      "maxBytes": 1024,
      "backupCount": 3
    }
  },
  "loggers": {
    "svc": {"level": "DEBUG", "handlers": ["file"], "propagate": false}
  },
  "root": {"level": "WARNING", "handlers": []}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAMLAndJSONAreEquivalent(t *testing.T) {
	fromYAML, err := Load(writeFile(t, "logging.yml", yamlDoc))
	require.NoError(t, err)

	fromJSON, err := Load(writeFile(t, "logging.json", jsonDoc))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, 1024, fromYAML["handlers"].(map[string]any)["file"].(map[string]any)["maxBytes"])
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want Loader
	}{
		{"conf/logging.yml", YAML{}},
		{"conf/logging.json", JSON{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, err := ForPath(tt.path)
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
		})
	}
}

func TestForPath_Unsupported(t *testing.T) {
	for _, path := range []string{"x.txt", "x.yaml", "x.YML", "x", "x.toml", "x.yml.bak"} {
		t.Run(path, func(t *testing.T) {
			_, err := ForPath(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
		})
	}
}

func TestLoad_UnsupportedDoesNotTouchFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	assert.NotErrorIs(t, err, apperrors.ErrLoad)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yml")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.yml")
}

func TestLoad_ParseErrorsKeepCause(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "bad.yml", "handlers: [unclosed"},
		{"json", "bad.json", `{"handlers": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrLoad)

			app := apperrors.FromError(err)
			require.NotNil(t, app.InnerError)
			assert.Contains(t, err.Error(), app.InnerError.Error())
		})
	}
}

func TestLoad_TopLevelMustBeMapping(t *testing.T) {
	_, err := Load(writeFile(t, "list.yml", "- a\n- b\n"))
	assert.ErrorIs(t, err, apperrors.ErrLoad)

	_, err = Load(writeFile(t, "list.json", `[1, 2]`))
	assert.ErrorIs(t, err, apperrors.ErrLoad)
}

func TestLoad_EmptyYAMLIsEmptyMapping(t *testing.T) {
	m, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestJSON_RejectsInvalidUTF8(t *testing.T) {
	_, err := JSON{}.Load(writeFile(t, "latin1.json", "{\"name\": \"caf\xe9\"}"))
	assert.ErrorIs(t, err, apperrors.ErrLoad)
}

func TestYAML_NonStringKeys(t *testing.T) {
	m, err := YAML{}.Load(writeFile(t, "keys.yml", "codes:\n  1: one\n  2: two\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "one", "2": "two"}, m["codes"])
}

func TestLoaderFunc(t *testing.T) {
	var got string
	l := LoaderFunc(func(path string) (map[string]any, error) {
		got = path
		return map[string]any{"version": 1}, nil
	})

	m, err := l.Load("anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", got)
	assert.Equal(t, 1, m["version"])
}
