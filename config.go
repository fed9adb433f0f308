package nrmetrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethpandaops/nrmetrics/internal/export/newrelic"
	"github.com/ethpandaops/nrmetrics/internal/flush"
)

// Config configures a Metrics instance. Start from DefaultConfig.
type Config struct {
	// APIKey is the New Relic license or insert key. Without it metrics are
	// still aggregated but never exported.
	APIKey string `yaml:"api_key"`

	// Endpoint is the Metric API URL.
	Endpoint string `yaml:"endpoint"`

	// AppName is reported as the app.name attribute.
	AppName string `yaml:"app_name"`

	// NamePrefix is prepended to every metric name. May be empty.
	NamePrefix string `yaml:"name_prefix"`

	// Compression is one of none, gzip, zstd, zlib, snappy.
	Compression string `yaml:"compression"`

	// ExportTimeout bounds each HTTP submission.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// MaxBatchSize caps metrics per request.
	MaxBatchSize int `yaml:"max_batch_size"`

	// KeepAlive enables HTTP keep-alive. Defaults to true.
	KeepAlive *bool `yaml:"keep_alive"`

	// Headers are extra HTTP headers for every request.
	Headers map[string]string `yaml:"headers"`

	// CommonAttributes are extra attributes for every metric.
	CommonAttributes map[string]string `yaml:"common_attributes"`

	// FlushInterval is how often aggregates are sent.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// PollInterval is how often the flush loop checks the clock.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Labels maps base metric names to the label names carried in their
	// trailing segments. Nil selects the default image server table.
	Labels map[string][]string `yaml:"labels"`

	// Registerer, when set, receives the pipeline's own Prometheus metrics.
	Registerer prometheus.Registerer `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	exp := newrelic.DefaultConfig()
	fl := flush.DefaultConfig()

	return Config{
		Endpoint:      exp.Endpoint,
		AppName:       exp.AppName,
		NamePrefix:    exp.NamePrefix,
		Compression:   exp.Compression,
		ExportTimeout: exp.ExportTimeout,
		MaxBatchSize:  exp.MaxBatchSize,
		KeepAlive:     exp.KeepAlive,
		FlushInterval: fl.Interval,
		PollInterval:  fl.PollInterval,
	}
}

// Validate checks the configuration. A missing API key is not an error.
func (c *Config) Validate() error {
	exp := c.exporterConfig()
	exp.ApplyDefaults()

	if err := exp.Validate(); err != nil {
		return fmt.Errorf("newrelic: %w", err)
	}

	fl := c.flushConfig()

	if err := fl.Validate(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

func (c *Config) exporterConfig() newrelic.Config {
	return newrelic.Config{
		APIKey:           c.APIKey,
		Endpoint:         c.Endpoint,
		AppName:          c.AppName,
		NamePrefix:       c.NamePrefix,
		Headers:          c.Headers,
		CommonAttributes: c.CommonAttributes,
		Compression:      c.Compression,
		ExportTimeout:    c.ExportTimeout,
		MaxBatchSize:     c.MaxBatchSize,
		KeepAlive:        c.KeepAlive,
	}
}

func (c *Config) flushConfig() flush.Config {
	return flush.Config{
		Interval:      c.FlushInterval,
		PollInterval:  c.PollInterval,
		ExportTimeout: c.ExportTimeout,
	}
}
