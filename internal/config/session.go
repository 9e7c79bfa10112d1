package config

import "time"

// SessionConfig configures the in-memory conversation store.
type SessionConfig struct {
	// Idle time after which a conversation (and its in-progress task) is dropped.
	TTL string `yaml:"ttl"`

	// Number of lock shards in the memory store.
	Shards int `yaml:"shards" validate:"min=1,max=4096"`

	// Turns retained per session.
	HistoryLimit int `yaml:"history_limit" validate:"min=1"`

	// Lifetime of an enumerated choice list offered to the user.
	SelectionTTL string `yaml:"selection_ttl"`

	// How often expired sessions are swept while serving.
	SweepInterval string `yaml:"sweep_interval"`
}

// DialogueConfig configures turn handling policy.
type DialogueConfig struct {
	// Abandon an in-progress task immediately when an unrelated query arrives,
	// instead of asking the user to confirm.
	AutoAbandon bool `yaml:"auto_abandon"`
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 10*time.Minute)
}

// GetSelectionTTL returns the choice-list lifetime as a duration.
func (c *Config) GetSelectionTTL() time.Duration {
	return parseDuration(c.Session.SelectionTTL, 5*time.Minute)
}

// GetSweepInterval returns the expiry sweep period as a duration.
func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Session.SweepInterval, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
