package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// GetConfigPath returns the default config file path (~/.onebot-bridge/config.yaml).
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".onebot-bridge", "config.yaml")
}

// Load reads configuration from a YAML (or JSON) file and applies ONEBOT_* env overrides.
// If path is empty, uses the default config path.
// If the file doesn't exist, returns DefaultConfig() with env overrides applied.
func Load(path string) (Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	cfg := DefaultConfig() // start with defaults so zero-value fields get filled

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, err
	}

	if err := env.Parse(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes configuration to a YAML file.
// If path is empty, uses the default config path.
func Save(cfg Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the adapters cannot run with.
func (c Config) Validate() error {
	switch c.MessagePostFormat {
	case FormatArray, FormatString:
	default:
		return fmt.Errorf("message_post_format must be %q or %q, got %q", FormatArray, FormatString, c.MessagePostFormat)
	}
	if c.HeartIntervalMs < 0 {
		return fmt.Errorf("heart_interval_ms must not be negative")
	}
	if c.Identity.Capacity <= 0 {
		return fmt.Errorf("identity.capacity must be positive")
	}
	return nil
}
