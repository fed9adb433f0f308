package newrelic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "thumbor", cfg.AppName)
	assert.Equal(t, "custom.thumbor", cfg.NamePrefix)
	assert.Equal(t, 10*time.Second, cfg.ExportTimeout)
	assert.Equal(t, 5000, cfg.MaxBatchSize)
	assert.True(t, cfg.IsKeepAlive())
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{APIKey: "k"}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "thumbor", cfg.AppName)
	assert.Equal(t, CompressionNone, cfg.Compression)
	assert.Empty(t, cfg.NamePrefix)
	assert.True(t, cfg.Enabled())
	assert.NotNil(t, cfg.KeepAlive)
}

func TestConfig_Validate(t *testing.T) {
	disabled := false

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing endpoint",
			cfg:     Config{},
			wantErr: "endpoint is required",
		},
		{
			name:    "bad scheme",
			cfg:     Config{Endpoint: "udp://collector:8125"},
			wantErr: "http or https",
		},
		{
			name:    "negative timeout",
			cfg:     Config{Endpoint: DefaultEndpoint, ExportTimeout: -time.Second},
			wantErr: "export_timeout",
		},
		{
			name:    "negative batch size",
			cfg:     Config{Endpoint: DefaultEndpoint, MaxBatchSize: -1},
			wantErr: "max_batch_size",
		},
		{
			name:    "unknown compression",
			cfg:     Config{Endpoint: DefaultEndpoint, Compression: "brotli"},
			wantErr: "invalid compression type",
		},
		{
			name: "valid",
			cfg: Config{
				Endpoint:    "https://metric-api.eu.newrelic.com/metric/v1",
				Compression: CompressionZstd,
				KeepAlive:   &disabled,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
