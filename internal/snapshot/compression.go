package snapshot

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the codec applied to every snapshot file.
type Compression string

const (
	// CompressionNone stores files as is.
	CompressionNone Compression = "none"
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = "lz4"
	// CompressionZstd favors ratio. It is the default.
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name. The empty string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionNone:
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("snapshot: unknown compression %q", s)
	}
}

// Ext returns the blob name suffix for c.
func (c Compression) Ext() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newWriter wraps w with the compressor for c. Closing the result flushes
// the compressor but does not close w.
func newWriter(c Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", c)
	}
}

// newReader wraps r with the decompressor for c.
func newReader(c Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", c)
	}
}
