package env_mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv(t *testing.T) {
	tests := []struct {
		in   string
		want ENV_MODE
	}{
		{"", DevMode},
		{"dev", DevMode},
		{" Production ", ProMode},
		{"prod", ProMode},
		{"testing", TestMode},
		{"staging", DevMode},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEnv(tt.in))
		})
	}
}

func TestSetMode(t *testing.T) {
	prev := Mode()
	t.Cleanup(func() { SetMode(prev) })

	SetMode(ProMode)
	assert.Equal(t, ProMode, Mode())
	assert.Equal(t, []string{"pro", "prod"}, Aliases(Mode()))
}
