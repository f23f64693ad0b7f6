package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration file, read from --config or
// ~/.mum/config.yaml when present.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	PluginsDir      string `yaml:"plugins_dir"`
	CoreVersion     string `yaml:"core_version"`
	SyncConcurrency int    `yaml:"sync_concurrency"`
}

func defaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir:     filepath.Join(home, ".mum"),
		CoreVersion: "1.0.0",
	}
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultConfig().DataDir
	}
	if cfg.CoreVersion == "" {
		cfg.CoreVersion = "1.0.0"
	}
	return cfg, nil
}

func (c Config) pluginsDir() string {
	if c.PluginsDir != "" {
		return c.PluginsDir
	}
	return filepath.Join(c.DataDir, "plugins")
}

func (c Config) databasePath() string {
	return filepath.Join(c.DataDir, "mum.db")
}
