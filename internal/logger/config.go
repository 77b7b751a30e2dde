package logger

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds logging configuration. It is the `logging:` block of the
// application config; LOG_* environment variables override it.
type Config struct {
	Level          string `yaml:"level" env:"LOG_LEVEL"`
	ConsoleEnabled bool   `yaml:"console_enabled" env:"LOG_CONSOLE_ENABLED"`
	ConsoleFormat  string `yaml:"console_format" env:"LOG_CONSOLE_FORMAT"`
	FileEnabled    bool   `yaml:"file_enabled" env:"LOG_FILE_ENABLED"`
	FilePath       string `yaml:"file_path" env:"LOG_FILE_PATH"`
	FileFormat     string `yaml:"file_format" env:"LOG_FILE_FORMAT"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// DefaultConfig returns console-only INFO logging.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/statcalc.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// ApplyEnv overrides fields from LOG_* environment variables that are set.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse logging env: %w", err)
	}
	return nil
}

// fillDefaults replaces zero-valued sizing fields with defaults.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.ConsoleFormat == "" {
		c.ConsoleFormat = d.ConsoleFormat
	}
	if c.FileFormat == "" {
		c.FileFormat = d.FileFormat
	}
	if c.FilePath == "" {
		c.FilePath = d.FilePath
	}
	if c.FileMaxSizeMB <= 0 {
		c.FileMaxSizeMB = d.FileMaxSizeMB
	}
	if c.FileMaxBackups <= 0 {
		c.FileMaxBackups = d.FileMaxBackups
	}
	if c.FileMaxAgeDays <= 0 {
		c.FileMaxAgeDays = d.FileMaxAgeDays
	}
}
