package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all contractbot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version"`

	// Base directory for logs, turn log and snapshots.
	DataDir string `yaml:"data_dir" validate:"required"`

	Session  SessionConfig  `yaml:"session"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "contractbot",
		Version: "1.0.0",
		DataDir: ".contractbot",

		Session: SessionConfig{
			TTL:           "10m",
			Shards:        32,
			HistoryLimit:  20,
			SelectionTTL:  "5m",
			SweepInterval: "1m",
		},

		Dialogue: DialogueConfig{
			AutoAbandon: false,
		},

		Store: StoreConfig{
			Driver:           "sqlite3",
			TurnLogEnabled:   true,
			SnapshotEnabled:  true,
			SnapshotInterval: "30s",
		},

		Server: ServerConfig{
			Addr:            ":8085",
			ShutdownTimeout: "10s",
		},

		Events: EventsConfig{
			Subject: "contractbot.task.completed",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honor the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CONTRACTBOT_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if addr := os.Getenv("CONTRACTBOT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if ttl := os.Getenv("CONTRACTBOT_SESSION_TTL"); ttl != "" {
		c.Session.TTL = ttl
	}
	if file := os.Getenv("CONTRACTBOT_TASKS_FILE"); file != "" {
		c.Tasks.File = file
	}
	if driver := os.Getenv("CONTRACTBOT_STORE_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
	if url := os.Getenv("CONTRACTBOT_NATS_URL"); url != "" {
		c.Events.NATSURL = url
	}
	if v := os.Getenv("CONTRACTBOT_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
	if level := os.Getenv("CONTRACTBOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, d := range []struct{ name, value string }{
		{"session.ttl", c.Session.TTL},
		{"session.selection_ttl", c.Session.SelectionTTL},
		{"store.snapshot_interval", c.Store.SnapshotInterval},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", d.name, err)
		}
	}
	return nil
}
