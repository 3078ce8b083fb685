// Package config loads layered settings files with viper: a base file,
// optional local and environment-specific overlays, then environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/logfactory/env_mode"
	"github.com/leeforge/logfactory/utils"
)

// KeyDelimiter separates nested keys in Get and Set ("log::level"). Dots are
// left alone so dotted names such as logger names survive as single keys.
const KeyDelimiter = "::"

var envKeyReplacer = strings.NewReplacer(KeyDelimiter, "_", ".", "_")

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
}

type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	WatchAble bool
	// OnChange runs after a watched file changed and the settings reloaded.
	OnChange func(e fsnotify.Event)
	// OnError receives reload failures while watching.
	OnError func(err error)
}

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath: basePath,
		FileName: "config",
		FileType: "yaml",
	}
}

type Config struct {
	mu       sync.RWMutex
	instance *viper.Viper
	opts     Options
	files    []string

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

func New(optsArr ...Options) (*Config, error) {
	opts := DefaultOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}

	instance, files, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	c := &Config{instance: instance, opts: opts, files: files}
	if opts.WatchAble {
		if err := c.watch(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Files lists the files merged into the settings, lowest priority first.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.files...)
}

// AllSettings returns the merged settings as nested maps. Keys are lower case.
func (c *Config) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance.AllSettings()
}

func (c *Config) Bind(instance any) error {
	if instance == nil {
		return fmt.Errorf("❌ Target instance is nil")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.instance.Unmarshal(instance); err != nil {
		return fmt.Errorf("❌ Failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}
	return nil
}

func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults: %w", err)
	}

	if err := c.Bind(instance); err != nil {
		return err
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults after unmarshal: %w", err)
	}

	return nil
}

func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instance.Set(key, value)
}

// Close stops watching. It is a no-op when the config is not watched.
func (c *Config) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher == nil {
		return nil
	}
	close(c.done)
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// watch reloads every layer when any file in BasePath that belongs to the
// layered set is written, created or renamed.
func (c *Config) watch() error {
	var err error
	c.watchOnce.Do(func() {
		var w *fsnotify.Watcher
		if w, err = fsnotify.NewWatcher(); err != nil {
			err = fmt.Errorf("❌ Failed to start config watcher: %w", err)
			return
		}
		if err = w.Add(c.opts.BasePath); err != nil {
			_ = w.Close()
			err = fmt.Errorf("❌ Failed to watch %s: %w", c.opts.BasePath, err)
			return
		}
		c.watcher = w
		c.done = make(chan struct{})
		go c.watchLoop(w, c.done)
	})
	return err
}

func (c *Config) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !c.isLayer(e.Name) {
				continue
			}
			if err := c.reload(); err != nil {
				c.reportError(err)
				continue
			}
			if c.opts.OnChange != nil {
				c.opts.OnChange(e)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.reportError(err)
		}
	}
}

func (c *Config) reportError(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
		return
	}
	fmt.Printf("❌ Config watch error: %v\n", err)
}

func (c *Config) isLayer(path string) bool {
	base := filepath.Base(path)
	for _, name := range layerNames(c.opts.FileName) {
		if base == name+"."+c.opts.FileType {
			return true
		}
	}
	return false
}

func (c *Config) reload() error {
	instance, files, err := CreateConfig(c.opts)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.instance, c.files = instance, files
	c.mu.Unlock()
	return nil
}

// CreateConfig merges the layered files for opts into a new viper instance.
func CreateConfig(opts Options) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 {
		return nil, nil, fmt.Errorf("❌ No valid configuration files found in path: %s", opts.BasePath)
	}

	v := newViper()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := newViper()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("❌ Error reading config file %s: %w", configPath, err)
		}
		if err := v.MergeConfigMap(tempV.AllSettings()); err != nil {
			return nil, nil, fmt.Errorf("❌ Error merging config file %s: %w", configPath, err)
		}
	}

	v.SetEnvKeyReplacer(envKeyReplacer)
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	// Override with environment variables (higher priority than config files)
	applyEnvOverrides(v, opts.EnvPrefix)

	return v, configPaths, nil
}

// applyEnvOverrides sets every key that has a matching environment variable,
// so overrides also show up in AllSettings.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		// database::host -> DATABASE_HOST
		envKey := strings.ToUpper(envKeyReplacer.Replace(key))
		if envPrefix != "" {
			envKey = strings.ToUpper(envPrefix) + "_" + envKey
		}

		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// layerNames lists the file names merged for base, lowest priority first.
func layerNames(base string) []string {
	env := env_mode.Mode()
	names := []string{
		base,
		base + ".local",
		fmt.Sprintf("%s.%s", base, env),
		fmt.Sprintf("%s.%s.local", base, env),
	}
	for _, alias := range env_mode.Aliases(env) {
		names = append(names, base+"."+alias, base+"."+alias+".local")
	}
	return names
}

func getConfigFilePaths(opts Options) (configFiles []string) {
	seen := make(map[string]struct{})
	for _, fileName := range layerNames(opts.FileName) {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if _, dup := seen[file]; dup {
			continue
		}
		seen[file] = struct{}{}
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}
	return configFiles
}
