package config

import (
	"path/filepath"
	"time"
)

// StoreConfig configures persistence collaborators.
type StoreConfig struct {
	// Turn log (sqlite). Driver "sqlite3" uses cgo, "sqlite" is pure Go.
	Driver         string `yaml:"driver" validate:"oneof=sqlite3 sqlite"`
	TurnLogPath    string `yaml:"turn_log_path"`
	TurnLogEnabled bool   `yaml:"turn_log_enabled"`

	// Session snapshots (badger).
	SnapshotDir      string `yaml:"snapshot_dir"`
	SnapshotEnabled  bool   `yaml:"snapshot_enabled"`
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// TasksConfig locates the task definition file.
type TasksConfig struct {
	// Empty means the built-in contract creation task.
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `yaml:"addr" validate:"required"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// EventsConfig configures task event publishing.
type EventsConfig struct {
	// Empty disables publishing.
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject" validate:"required"`
}

// ResolveTurnLogPath returns the turn log path relative to the data directory.
func (c *Config) ResolveTurnLogPath() string {
	if c.Store.TurnLogPath != "" {
		return c.Store.TurnLogPath
	}
	return filepath.Join(c.DataDir, "turns.db")
}

// ResolveSnapshotDir returns the snapshot directory relative to the data directory.
func (c *Config) ResolveSnapshotDir() string {
	if c.Store.SnapshotDir != "" {
		return c.Store.SnapshotDir
	}
	return filepath.Join(c.DataDir, "sessions")
}

// GetSnapshotInterval returns the snapshot period as a duration.
func (c *Config) GetSnapshotInterval() time.Duration {
	return parseDuration(c.Store.SnapshotInterval, 30*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}
