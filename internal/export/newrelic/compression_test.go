package newrelic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte(`{"name":"custom.thumbor.response.status","type":"count"},`), 20)

	tests := []struct {
		algorithm string
		encoding  string
		shrinks   bool
	}{
		{algorithm: CompressionNone, encoding: ""},
		{algorithm: CompressionGzip, encoding: "gzip", shrinks: true},
		{algorithm: CompressionZstd, encoding: "zstd", shrinks: true},
		{algorithm: CompressionZlib, encoding: "deflate", shrinks: true},
		{algorithm: CompressionSnappy, encoding: "snappy", shrinks: true},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			c, err := NewCompressor(tt.algorithm)
			require.NoError(t, err)
			defer c.Close()

			compressed, err := c.Compress(original)
			require.NoError(t, err)

			assert.Equal(t, tt.encoding, c.ContentEncoding())

			if tt.shrinks {
				assert.Less(t, len(compressed), len(original))
			}

			decompressed, err := Decompress(tt.algorithm, compressed)
			require.NoError(t, err)
			assert.Equal(t, original, decompressed)
		})
	}
}

func TestCompressor_Unsupported(t *testing.T) {
	_, err := NewCompressor("lz4")
	assert.Error(t, err)

	_, err = Decompress("lz4", nil)
	assert.Error(t, err)
}

func TestCompressor_CloseWithoutEncoder(t *testing.T) {
	c, err := NewCompressor(CompressionGzip)
	require.NoError(t, err)

	assert.NoError(t, c.Close())
}
