package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/logfactory/errors"
)

func fileConfig(t *testing.T, path string, extra map[string]any) *DictConfig {
	t.Helper()
	raw := map[string]any{
		"version": 1,
		"formatters": map[string]any{
			"plain": map[string]any{"format": "%(name)s %(levelname)s %(message)s"},
		},
		"handlers": map[string]any{
			"file": map[string]any{
				"class":     "logging.FileHandler",
				"filename":  path,
				"formatter": "plain",
			},
		},
		"loggers": map[string]any{
			"app": map[string]any{"level": "WARNING", "handlers": []any{"file"}, "propagate": false},
		},
	}
	for k, v := range extra {
		raw[k] = v
	}
	cfg, err := DecodeDictConfig(raw)
	require.NoError(t, err)
	return cfg
}

func TestApply_WiresLoggers(t *testing.T) {
	reg := NewRegistry()
	rootHandler, rootBuf := bufferHandler(t, NotSet)
	reg.Attach(RootLoggerName, rootHandler)

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, reg.Apply(fileConfig(t, path, nil)))

	lg := reg.Logger("app")
	lg.Info("filtered by level")
	lg.Warn("written")

	assert.Equal(t, "app WARNING written\n", readFile(t, path))
	assert.Empty(t, rootBuf.String(), "propagate false keeps records away from root")

	infos := reg.Handlers("app")
	require.Len(t, infos, 1)
	assert.Equal(t, "file", infos[0].Name)
	assert.Equal(t, path, infos[0].Target)
}

func TestApply_DisableExistingLoggers(t *testing.T) {
	reg := NewRegistry()
	reg.Logger("legacy")
	child, _ := bufferHandler(t, NotSet)
	reg.Attach("app.child", child)
	reg.SetLevel("app.child", ErrorLevel)

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, reg.Apply(fileConfig(t, path, nil)))

	assert.True(t, reg.Disabled("legacy"))
	assert.False(t, reg.Disabled("app.child"))
	assert.Empty(t, reg.Handlers("app.child"))
	assert.Equal(t, WarnLevel, reg.EffectiveLevel("app.child"))

	reg.Logger("app.child").Warn("through parent")
	assert.Equal(t, "app.child WARNING through parent\n", readFile(t, path))
}

func TestApply_KeepExistingLoggers(t *testing.T) {
	reg := NewRegistry()
	reg.Logger("legacy")

	path := filepath.Join(t.TempDir(), "app.log")
	cfg := fileConfig(t, path, map[string]any{"disable_existing_loggers": false})
	require.NoError(t, reg.Apply(cfg))

	assert.False(t, reg.Disabled("legacy"))
}

func TestApply_FailureLeavesRegistryUntouched(t *testing.T) {
	reg := NewRegistry()
	existing, buf := bufferHandler(t, NotSet)
	reg.Attach("app", existing)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	cfg := fileConfig(t, filepath.Join(dir, "good.log"), map[string]any{
		"handlers": map[string]any{
			"file": map[string]any{"class": "logging.FileHandler", "filename": filepath.Join(dir, "good.log")},
			"zbad": map[string]any{"class": "logging.FileHandler", "filename": filepath.Join(blocker, "x.log")},
		},
		"loggers": map[string]any{
			"app": map[string]any{"handlers": []any{"file", "zbad"}},
		},
	})

	err := reg.Apply(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrApply)
	assert.Contains(t, err.Error(), "handler zbad")

	infos := reg.Handlers("app")
	require.Len(t, infos, 1)
	assert.Equal(t, KindConsole, infos[0].Kind)
	reg.Logger("app").Info("still here")
	assert.Equal(t, "app:INFO:still here\n", buf.String())
}

func TestApply_ReplacesAndClosesPreviousHandlers(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, reg.Apply(fileConfig(t, first, nil)))
	require.NoError(t, reg.Apply(fileConfig(t, second, nil)))

	reg.Logger("app").Error("to second")
	assert.Empty(t, readFile(t, first))
	assert.Equal(t, "app ERROR to second\n", readFile(t, second))
	assert.Len(t, reg.Handlers("app"), 1)
}

func TestApply_UnreferencedHandlerIsClosed(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()
	cfg := fileConfig(t, filepath.Join(dir, "used.log"), map[string]any{
		"handlers": map[string]any{
			"file":   map[string]any{"class": "logging.FileHandler", "filename": filepath.Join(dir, "used.log")},
			"unused": map[string]any{"class": "logging.FileHandler", "filename": filepath.Join(dir, "unused.log")},
		},
	})
	require.NoError(t, reg.Apply(cfg))
	assert.Len(t, reg.Handlers("app"), 1)
	assert.FileExists(t, filepath.Join(dir, "unused.log"))
}

func TestApply_RootLevelAndHandlers(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "root.log")
	cfg, err := DecodeDictConfig(map[string]any{
		"version":  1,
		"handlers": map[string]any{"file": map[string]any{"class": "file", "filename": path}},
		"root":     map[string]any{"level": "ERROR", "handlers": []any{"file"}},
	})
	require.NoError(t, err)
	require.NoError(t, reg.Apply(cfg))

	reg.Logger("any.thing").Warn("dropped")
	reg.Logger("any.thing").Error("kept")
	assert.Equal(t, "kept\n", readFile(t, path))
}

func TestApply_Incremental(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, reg.Apply(fileConfig(t, path, nil)))

	inc, err := DecodeDictConfig(map[string]any{
		"version":     1,
		"incremental": true,
		"loggers":     map[string]any{"app": map[string]any{"level": "DEBUG"}},
		"handlers":    map[string]any{"file": map[string]any{"level": "INFO"}},
	})
	require.NoError(t, err)
	require.NoError(t, reg.Apply(inc))

	lg := reg.Logger("app")
	lg.Debug("below handler level")
	lg.Info("visible")
	assert.Equal(t, "app INFO visible\n", readFile(t, path))
	assert.Equal(t, DebugLevel, reg.EffectiveLevel("app"))

	unknown, err := DecodeDictConfig(map[string]any{
		"version":     1,
		"incremental": true,
		"handlers":    map[string]any{"other": map[string]any{"level": "INFO"}},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, reg.Apply(unknown), apperrors.ErrApply)
}

func TestApply_ValidatesHandBuiltConfig(t *testing.T) {
	reg := NewRegistry()
	err := reg.Apply(&DictConfig{
		Version: 1,
		Loggers: map[string]LoggerConfig{"app": {Handlers: []string{"ghost"}}},
	})
	assert.ErrorIs(t, err, apperrors.ErrShape)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := map[string]any{
		"handlers": map[string]any{
			"out":     map[string]any{"filename": filepath.Join(dir, "logs", "app", "out.log")},
			"console": map[string]any{"class": "logging.StreamHandler"},
		},
	}

	require.NoError(t, EnsureDirectories(cfg))
	assert.DirExists(t, filepath.Join(dir, "logs"))
	assert.DirExists(t, filepath.Join(dir, "logs", "app"))
	assert.NoFileExists(t, filepath.Join(dir, "logs", "app", "out.log"))

	require.NoError(t, EnsureDirectories(cfg), "second run is a no-op")
}

func TestEnsureDirectories_Shape(t *testing.T) {
	tests := map[string]map[string]any{
		"missing handlers":   {"version": 1},
		"handlers not a map": {"handlers": []any{"a"}},
		"entry not a map":    {"handlers": map[string]any{"a": "console"}},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, EnsureDirectories(cfg), apperrors.ErrShape)
		})
	}
}
