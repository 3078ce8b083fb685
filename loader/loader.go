// Package loader reads declarative logging configuration files into plain Go
// values. The format is picked by file suffix.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/leeforge/logfactory/errors"
)

// Loader turns a configuration file into a generic mapping.
type Loader interface {
	Load(path string) (map[string]any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (map[string]any, error)

func (f LoaderFunc) Load(path string) (map[string]any, error) { return f(path) }

// Supported file suffixes. Matching is exact: ".yaml" and ".YML" are rejected.
const (
	ExtYML  = ".yml"
	ExtJSON = ".json"
)

// ForPath returns the Loader registered for the suffix of path.
func ForPath(path string) (Loader, error) {
	switch ext := filepath.Ext(path); ext {
	case ExtYML:
		return YAML{}, nil
	case ExtJSON:
		return JSON{}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeUnsupportedFormat,
			"unsupported config format %q for %s", ext, path).
			WithDetail("path", path)
	}
}

// Load picks a Loader by suffix and reads path with it.
func Load(path string) (map[string]any, error) {
	l, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return l.Load(path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeLoad, "read %s", path)
	}
	return data, nil
}

func asMapping(path string, doc any) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeLoad,
			"%s: top-level value must be a mapping, got %T", path, doc)
	}
	return m, nil
}

// describe returns the cause text recorded in error details.
func describe(err error) string {
	return strings.TrimSpace(err.Error())
}
