package newrelic

import (
	"errors"
	"net/url"
	"time"
)

// DefaultEndpoint is the US region New Relic Metric API.
const DefaultEndpoint = "https://metric-api.newrelic.com/metric/v1"

// Config configures the New Relic metric exporter.
type Config struct {
	// APIKey is the license or insert key sent in the Api-Key header.
	// An empty key disables the exporter.
	APIKey string `yaml:"api_key"`

	// Endpoint is the Metric API URL.
	// Defaults to DefaultEndpoint.
	Endpoint string `yaml:"endpoint"`

	// AppName is attached to every metric as the app.name attribute.
	// Defaults to "thumbor".
	AppName string `yaml:"app_name"`

	// NamePrefix is prepended to every metric name with a "." separator.
	// Defaults to "custom.thumbor".
	NamePrefix string `yaml:"name_prefix"`

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers"`

	// CommonAttributes are merged into the envelope's common attributes.
	// app.name always takes precedence.
	CommonAttributes map[string]string `yaml:"common_attributes"`

	// Compression specifies the request body compression.
	// Valid values: none, gzip, zstd, zlib, snappy.
	// Defaults to none.
	Compression string `yaml:"compression"`

	// ExportTimeout bounds a single HTTP submission.
	// Defaults to 10s.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// MaxBatchSize is the maximum number of metrics per request.
	// Larger snapshots are split. Defaults to 5000.
	MaxBatchSize int `yaml:"max_batch_size"`

	// KeepAlive enables HTTP keep-alive connections.
	// Defaults to true.
	KeepAlive *bool `yaml:"keep_alive"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	keepAlive := true

	return Config{
		Endpoint:      DefaultEndpoint,
		AppName:       "thumbor",
		NamePrefix:    "custom.thumbor",
		Compression:   CompressionNone,
		ExportTimeout: 10 * time.Second,
		MaxBatchSize:  5000,
		KeepAlive:     &keepAlive,
	}
}

// Enabled reports whether credentials are configured.
func (c *Config) Enabled() bool {
	return c.APIKey != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return errors.New("invalid endpoint: " + err.Error())
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("endpoint must be an http or https URL")
	}

	if c.ExportTimeout < 0 {
		return errors.New("export_timeout must not be negative")
	}

	if c.MaxBatchSize < 0 {
		return errors.New("max_batch_size must not be negative")
	}

	if c.Compression != "" {
		switch c.Compression {
		case CompressionNone, CompressionGzip, CompressionZstd,
			CompressionZlib, CompressionSnappy:
			// Valid.
		default:
			return errors.New("invalid compression type: " + c.Compression)
		}
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
// NamePrefix is left alone: an empty prefix is a valid choice.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Endpoint == "" {
		c.Endpoint = defaults.Endpoint
	}

	if c.AppName == "" {
		c.AppName = defaults.AppName
	}

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaults.ExportTimeout
	}

	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaults.MaxBatchSize
	}

	if c.KeepAlive == nil {
		c.KeepAlive = defaults.KeepAlive
	}
}

// IsKeepAlive returns whether HTTP keep-alive is enabled.
func (c *Config) IsKeepAlive() bool {
	if c.KeepAlive == nil {
		return true
	}

	return *c.KeepAlive
}
