// Package config loads and validates scanforge configuration from a YAML
// file, environment variables and defaults.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration. The page geometry is fixed
// at image-open time and carried immutably by the image source afterwards.
type Config struct {
	// PageSize is the usable page length in bytes handed to scanners.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
	// Margin is the look-ahead appended past the usable page length.
	Margin int `mapstructure:"margin" yaml:"margin"`
	// Recurse permits scanning a directory of individual files.
	Recurse bool `mapstructure:"recurse" yaml:"recurse"`
	// Workers bounds concurrent page processing.
	Workers int `mapstructure:"workers" yaml:"workers"`

	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type OutputConfig struct {
	// Dir receives feature files produced by a scan.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

const (
	// Defaults follow the usual forensic scan geometry: 16 MiB pages with a
	// 4 MiB look-ahead margin.
	DefaultPageSize = 16 * 1024 * 1024
	DefaultMargin   = 4 * 1024 * 1024
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PageSize: DefaultPageSize,
		Margin:   DefaultMargin,
		Workers:  runtime.GOMAXPROCS(0),
		Output:   OutputConfig{Dir: "scanforge-output"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads configuration from the given file path (optional), layered over
// defaults and SCANFORGE_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("margin", def.Margin)
	v.SetDefault("recurse", def.Recurse)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("output.dir", def.Output.Dir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)

	v.SetEnvPrefix("SCANFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would break a scan.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.Margin < 0 {
		return fmt.Errorf("margin cannot be negative, got %d", c.Margin)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
