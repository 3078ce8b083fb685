package logging

import (
	"fmt"

	"github.com/leeforge/logfactory/utils"
)

// EnsureDirectories creates the parent directory of every handler filename in
// a loaded configuration document. It writes no files and is safe to repeat.
// The document must contain a "handlers" mapping.
func EnsureDirectories(cfg map[string]any) error {
	raw, ok := cfg["handlers"]
	if !ok {
		return shapeError("handlers", "missing")
	}
	handlers, ok := raw.(map[string]any)
	if !ok {
		return shapeError("handlers", fmt.Sprintf("expected a mapping, got %T", raw))
	}

	for _, name := range sortedKeys(handlers) {
		settings, ok := handlers[name].(map[string]any)
		if !ok {
			return shapeError("handlers."+name, fmt.Sprintf("expected a mapping, got %T", handlers[name]))
		}
		filename, _ := settings["filename"].(string)
		if filename == "" {
			continue
		}
		if err := utils.EnsureParentDir(filename); err != nil {
			return err
		}
	}
	return nil
}
