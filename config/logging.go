package config

import (
	"github.com/kilianp07/printfleet/core/logger"
	infralogger "github.com/kilianp07/printfleet/infra/logger"
)

// LoggingConfig sets the process wide log level and the optional log file.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string                 `json:"level"`
	File  infralogger.FileConfig `json:"file"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File.Path != "" && c.File.MaxSizeMB <= 0 {
		c.File.MaxSizeMB = 50
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	_, err := logger.ParseLevel(c.Level)
	return err
}

// ParsedLevel returns the configured level, info when invalid.
func (c LoggingConfig) ParsedLevel() logger.Level {
	l, _ := logger.ParseLevel(c.Level)
	return l
}
