package archive

import (
	"bytes"
	"testing"

	"cafe-pos/internal/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"name":"Es Kopi Susu","price":18000},`), 500)
	c := NewCompressors()

	tests := []struct {
		algorithm CompressionType
		level     int
	}{
		{CompressionNone, 0},
		{CompressionGzip, 0},
		{CompressionGzip, 9},
		{CompressionLZ4, 0},
		{CompressionLZ4, 9},
		{CompressionZstd, 0},
		{CompressionZstd, 19},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			compressed, err := c.Compress(data, tt.algorithm, tt.level)
			require.NoError(t, err)
			if tt.algorithm != CompressionNone {
				assert.Less(t, len(compressed), len(data))
			}

			out, err := c.Decompress(compressed, tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestCompressors_Unsupported(t *testing.T) {
	c := NewCompressors()

	_, err := c.Compress([]byte("x"), "brotli", 0)
	require.Error(t, err)
	assert.Equal(t, backup.BackupErrorTypeCompression, backup.ErrorType(err))

	_, err = c.Decompress([]byte("x"), "brotli")
	assert.Error(t, err)
}

func TestCompressors_CorruptInput(t *testing.T) {
	c := NewCompressors()
	for _, algorithm := range []CompressionType{CompressionGzip, CompressionZstd} {
		_, err := c.Decompress([]byte("definitely not compressed"), algorithm)
		assert.Error(t, err, algorithm)
	}
}
