// Package config provides configuration file support for ttm.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/webhook"
)

// DefaultPath is used when no --config flag is given.
var DefaultPath = filepath.Join(".ttm", "config.yaml")

// MinEntropyBytes is the lower bound for marker entropy tokens.
const MinEntropyBytes = 16

// Config represents the ttm configuration.
type Config struct {
	Marker   MarkerConfig   `yaml:"marker"`
	Log      LogConfig      `yaml:"log"`
	Logging  LoggingConfig  `yaml:"logging"`
	Webhooks webhook.Config `yaml:"webhooks"`
}

// MarkerConfig configures marker generation.
type MarkerConfig struct {
	DefaultLabel string `yaml:"default_label"`
	EntropyBytes int    `yaml:"entropy_bytes"`
}

// LogConfig configures the integrity log.
type LogConfig struct {
	FileName string `yaml:"file_name"`
	// RequireRecord makes verify fail with E_NOT_FOUND when nothing was recorded yet.
	RequireRecord bool `yaml:"require_record"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

type envOverrides struct {
	LogLevel      string `env:"TTM_LOG_LEVEL"`
	LogFormat     string `env:"TTM_LOG_FORMAT"`
	MarkerLabel   string `env:"TTM_MARKER_LABEL"`
	EntropyBytes  int    `env:"TTM_MARKER_ENTROPY_BYTES"`
	LogFile       string `env:"TTM_LOG_FILE"`
	RequireRecord string `env:"TTM_REQUIRE_RECORD"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Marker: MarkerConfig{
			DefaultLabel: model.DefaultLabel,
			EntropyBytes: 32,
		},
		Log: LogConfig{
			FileName: ".variables.log",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Webhooks: *webhook.DefaultConfig(),
	}
}

// Load reads the YAML file at path, applies TTM_* environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, errclass.ErrIO.Wrap(err, "read config")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.Wrap(err, "parse config")
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return errclass.ErrConfigInvalid.Wrap(err, "parse environment")
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.MarkerLabel != "" {
		c.Marker.DefaultLabel = o.MarkerLabel
	}
	if o.EntropyBytes != 0 {
		c.Marker.EntropyBytes = o.EntropyBytes
	}
	if o.LogFile != "" {
		c.Log.FileName = o.LogFile
	}
	if o.RequireRecord != "" {
		v, err := strconv.ParseBool(o.RequireRecord)
		if err != nil {
			return errclass.ErrConfigInvalid.WithMessagef("TTM_REQUIRE_RECORD: %v", err)
		}
		c.Log.RequireRecord = v
	}
	return nil
}

// Validate checks the configuration for values the core cannot work with.
func (c *Config) Validate() error {
	if c.Marker.EntropyBytes < MinEntropyBytes {
		return errclass.ErrConfigInvalid.WithMessagef("marker.entropy_bytes must be >= %d, got %d", MinEntropyBytes, c.Marker.EntropyBytes)
	}
	if c.Log.FileName == "" || filepath.Base(c.Log.FileName) != c.Log.FileName {
		return errclass.ErrConfigInvalid.WithMessagef("log.file_name must be a plain file name: %q", c.Log.FileName)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging.level: %v", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging.format: %v", err)
	}
	for i, h := range c.Webhooks.Hooks {
		if h.URL == "" {
			return errclass.ErrConfigInvalid.WithMessagef("webhooks.hooks[%d].url is required", i)
		}
	}
	return nil
}

// NewLogger builds a logger from the logging section.
func (c *Config) NewLogger() *logging.Logger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	l := logging.NewLogger(level)
	if f, err := logging.ParseFormat(c.Logging.Format); err == nil {
		l.SetFormat(f)
	}
	return l
}

// Save writes configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
