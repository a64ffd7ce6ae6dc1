package archive

import (
	"bytes"
	"fmt"
	"io"

	"cafe-pos/internal/backup"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses archive bodies
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
}

// Compressors holds the registered compressors keyed by algorithm
type Compressors struct {
	compressors map[CompressionType]Compressor
}

// NewCompressors registers gzip, lz4 and zstd
func NewCompressors() *Compressors {
	c := &Compressors{compressors: make(map[CompressionType]Compressor)}
	for _, comp := range []Compressor{gzipCompressor{}, lz4Compressor{}, zstdCompressor{}} {
		c.compressors[comp.Algorithm()] = comp
	}
	return c
}

// Compress applies algorithm. Level 0 selects the algorithm default.
func (c *Compressors) Compress(data []byte, algorithm CompressionType, level int) ([]byte, error) {
	if algorithm == CompressionNone || algorithm == "" {
		return data, nil
	}
	comp, ok := c.compressors[algorithm]
	if !ok {
		return nil, backup.NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	out, err := comp.Compress(data, level)
	if err != nil {
		return nil, backup.NewCompressionError(fmt.Sprintf("%s compression failed", algorithm), err)
	}
	return out, nil
}

// Decompress reverses Compress
func (c *Compressors) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionNone || algorithm == "" {
		return data, nil
	}
	comp, ok := c.compressors[algorithm]
	if !ok {
		return nil, backup.NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	out, err := comp.Decompress(data)
	if err != nil {
		return nil, backup.NewCompressionError(fmt.Sprintf("%s decompression failed", algorithm), err)
	}
	return out, nil
}

type gzipCompressor struct{}

func (gzipCompressor) Algorithm() CompressionType { return CompressionGzip }

func (gzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type lz4Compressor struct{}

func (lz4Compressor) Algorithm() CompressionType { return CompressionLZ4 }

func (lz4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if level > 0 {
		if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, err
		}
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// lz4Level maps 1-9 onto the lz4 levels
func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 1:
		return lz4.Fast
	case level <= 3:
		return lz4.Level3
	case level <= 5:
		return lz4.Level5
	case level <= 7:
		return lz4.Level7
	default:
		return lz4.Level9
	}
}

type zstdCompressor struct{}

func (zstdCompressor) Algorithm() CompressionType { return CompressionZstd }

func (zstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	opts := []zstd.EOption{}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
