package config

import "path/filepath"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"` // debug, info, warn, error
	Format     string          `yaml:"format" validate:"omitempty,oneof=json text"`                    // json, text
	Dir        string          `yaml:"dir"`                                                            // defaults to <data dir>/logs
	DebugMode  bool            `yaml:"debug_mode"`                                                     // Master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories"`                                                     // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false (production mode).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// LogsDir resolves the log directory relative to the data directory.
func (c *Config) LogsDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(c.DataDir, "logs")
}
