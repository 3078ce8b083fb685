package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	apperrors "github.com/leeforge/logfactory/errors"
)

// YAML loads YAML documents. Decoding produces plain data only; tags that
// would construct arbitrary types are not supported by yaml.v3.
type YAML struct{}

func (YAML) Load(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeLoad, "parse %s", path).
			WithDetail("cause", describe(err))
	}

	normalized, err := normalizeYAML(doc)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeLoad, "parse %s", path)
	}
	return asMapping(path, normalized)
}

// normalizeYAML converts map[any]any style nodes into map[string]any so YAML
// and JSON documents compare equal.
func normalizeYAML(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []any:
		for i, item := range t {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}
