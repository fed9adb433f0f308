package flush

import (
	"errors"
	"time"
)

// Config configures the flush scheduler.
type Config struct {
	// Interval is how often the aggregate store is drained and exported.
	// Defaults to 15s.
	Interval time.Duration

	// PollInterval is how often the loop wakes to check whether Interval
	// has elapsed. Capped at Interval. Defaults to 1s.
	PollInterval time.Duration

	// ExportTimeout bounds one export call. Defaults to 10s.
	ExportTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      15 * time.Second,
		PollInterval:  time.Second,
		ExportTimeout: 10 * time.Second,
	}
}

// Validate checks for values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Interval < 0 {
		return errors.New("flush interval must not be negative")
	}

	if c.PollInterval < 0 {
		return errors.New("poll interval must not be negative")
	}

	if c.ExportTimeout < 0 {
		return errors.New("export timeout must not be negative")
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}

	if c.PollInterval > c.Interval {
		c.PollInterval = c.Interval
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaults.ExportTimeout
	}
}
