// Package json decodes configuration documents with json-iterator.
package json

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UnmarshalDocument decodes an arbitrary UTF-8 JSON document into plain Go
// values: map[string]any, []any, string, bool, nil, int for integral numbers
// and float64 otherwise. A leading byte order mark is ignored.
func UnmarshalDocument(data []byte) (any, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return normalizeNumbers(doc), nil
}

// number is satisfied by both encoding/json.Number and jsoniter.Number.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
