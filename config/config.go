package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/leeforge/catalogkit/utils"
	"github.com/spf13/viper"
)

var ErrNoConfigFiles = errors.New("no configuration files found")

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CATALOGKIT_CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:     basePath,
		FileName:     "settings",
		FileType:     "yaml",
		EnvPrefix:    "CATALOGKIT",
		AllowMissing: true,
	}
}

func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	opts := DefaultConfigOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}

	instance, files, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
		files:    files,
	}, nil
}

// Files returns the settings files that were merged, in load order.
func (c *Config) Files() []string {
	return c.files
}

func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}
	if instance == nil {
		return fmt.Errorf("target instance is nil")
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	if err := c.instance.Unmarshal(instance); err != nil {
		return fmt.Errorf("unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	if c.opts.WatchAble && len(c.files) > 0 {
		c.watchOnce.Do(func() {
			c.instance.OnConfigChange(func(e fsnotify.Event) {
				c.watchMutex.Lock()
				defer c.watchMutex.Unlock()

				if err := c.reload(); err != nil {
					return
				}
				if err := c.instance.Unmarshal(instance); err != nil {
					return
				}
				if c.opts.OnChange != nil {
					c.opts.OnChange(e)
				}
			})
			c.instance.WatchConfig()
		})
	}

	return nil
}

// BindWithDefaults fills `default` tags, binds the merged settings over them,
// then fills whatever the files left at zero.
func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}

	if err := c.Bind(instance); err != nil {
		return err
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("set defaults after unmarshal: %w", err)
	}

	return nil
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	c.instance.Set(key, value)
}

// reload re-merges every layer into the live instance.
func (c *Config) reload() error {
	fresh, files, err := CreateConfig(c.opts)
	if err != nil {
		return err
	}
	for _, key := range fresh.AllKeys() {
		c.instance.Set(key, fresh.Get(key))
	}
	c.files = files
	return nil
}

// CreateConfig merges the layered settings files in order, then applies
// environment overrides. Later files win.
func CreateConfig(opts ConfigOptions) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 && !opts.AllowMissing {
		return nil, nil, fmt.Errorf("%w in path: %s", ErrNoConfigFiles, opts.BasePath)
	}

	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}

		for _, key := range tempV.AllKeys() {
			v.Set(key, tempV.Get(key))
		}
	}

	// WatchConfig follows the base file; the other layers are re-read on reload.
	if len(configPaths) > 0 {
		v.SetConfigFile(configPaths[0])
	}

	v.SetEnvKeyReplacer(envKeyReplacer)
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	applyEnvOverrides(v, opts.EnvPrefix)

	return v, configPaths, nil
}

// applyEnvOverrides gives environment variables priority over file values,
// e.g. media.hero.quality -> CATALOGKIT_MEDIA_HERO_QUALITY.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		envKey := EnvKey(envPrefix, key)
		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// EnvKey returns the environment variable name overriding a settings key.
func EnvKey(prefix, key string) string {
	envKey := strings.ToUpper(envKeyReplacer.Replace(key))
	if prefix != "" {
		envKey = strings.ToUpper(prefix) + "_" + envKey
	}
	return envKey
}

func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	env := Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
	}
	for _, alias := range modeAliases(env) {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, alias),
			fmt.Sprintf("%s.%s.local", opts.FileName, alias),
		)
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
