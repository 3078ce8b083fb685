package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalDocument(t *testing.T) {
	doc, err := UnmarshalDocument([]byte("\xEF\xBB\xBF" + `{"version":1,"ratio":0.5,"tags":["a",2],"nested":{"n":null,"ok":true}}`))
	require.NoError(t, err)

	want := map[string]any{
		"version": 1,
		"ratio":   0.5,
		"tags":    []any{"a", 2},
		"nested":  map[string]any{"n": nil, "ok": true},
	}
	assert.Equal(t, want, doc)
}

func TestUnmarshalDocumentErrors(t *testing.T) {
	_, err := UnmarshalDocument([]byte(`{"version":`))
	assert.Error(t, err)

	_, err = UnmarshalDocument([]byte(`{} {}`))
	assert.Error(t, err)
}
