package env_mode

import (
	"os"
	"strings"
	"sync"
)

const ENV_MODE_KEY = "GO_ENV_MODE"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	currentEnv ENV_MODE
	modeMu     sync.RWMutex
)

func ParseEnv(env string) ENV_MODE {
	normalizedEnv := strings.ToLower(strings.TrimSpace(env))
	switch normalizedEnv {
	case "development", "dev", "":
		return DevMode
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the current mode, read from GO_ENV_MODE on first use.
func Mode() ENV_MODE {
	modeMu.RLock()
	env := currentEnv
	modeMu.RUnlock()
	if env != "" {
		return env
	}

	modeMu.Lock()
	defer modeMu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode switches the mode for this process and exports it to children.
func SetMode(mode ENV_MODE) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentEnv = mode
	os.Setenv(ENV_MODE_KEY, string(mode))
}

// Aliases lists the short names settings files may use for mode.
func Aliases(mode ENV_MODE) []string {
	switch mode {
	case DevMode:
		return []string{"dev"}
	case ProMode:
		return []string{"pro", "prod"}
	case TestMode:
		return []string{"testing"}
	}
	return nil
}
