package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/nrmetrics"
	"github.com/ethpandaops/nrmetrics/internal/export"
	"github.com/ethpandaops/nrmetrics/internal/ingest"
)

// APIKeyEnv is consulted when metrics.api_key is empty.
const APIKeyEnv = "NEW_RELIC_API_KEY"

// Config is the top-level configuration for the nrmetrics daemon.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Metrics configures aggregation and the New Relic exporter.
	Metrics nrmetrics.Config `yaml:"metrics"`

	// Ingest configures the statsd UDP listener.
	Ingest ingest.Config `yaml:"ingest"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Metrics:  nrmetrics.DefaultConfig(),
		Ingest:   ingest.DefaultConfig(),
		Health: export.HealthConfig{
			Addr: ":9090",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if cfg.Metrics.APIKey == "" {
		cfg.Metrics.APIKey = os.Getenv(APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if c.Ingest.MaxDatagramSize < 0 {
		return fmt.Errorf("ingest.max_datagram_size must not be negative")
	}

	return nil
}
