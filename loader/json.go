package loader

import (
	"unicode/utf8"

	apperrors "github.com/leeforge/logfactory/errors"
	"github.com/leeforge/logfactory/json"
)

// JSON loads UTF-8 encoded JSON documents.
type JSON struct{}

func (JSON) Load(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, apperrors.Newf(apperrors.ErrorTypeLoad, "parse %s: invalid UTF-8", path)
	}

	doc, err := json.UnmarshalDocument(data)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeLoad, "parse %s", path).
			WithDetail("cause", describe(err))
	}
	return asMapping(path, doc)
}
