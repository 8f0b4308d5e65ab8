package zarr

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// -----------------------------------------------------------------------------
// Zstandard
// -----------------------------------------------------------------------------

type zstdCompressor struct {
	level int
}

// NewZstdCompressor returns a Compressor backed by klauspost/compress/zstd.
// Level follows the numcodecs convention (1 fastest, 22 best); 3 is the
// default used for new arrays.
func NewZstdCompressor(level int) Compressor {
	if level <= 0 {
		level = 3
	}
	return &zstdCompressor{level: level}
}

func (c *zstdCompressor) Name() string { return "zstd" }
func (c *zstdCompressor) Level() int   { return c.level }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)))
	if err != nil {
		return nil, fmt.Errorf("zarr: create zstd writer: %w", err)
	}
	return zw, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zarr: create zstd reader: %w", err)
	}
	return zr.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

type gzipCompressor struct {
	level int
}

// NewGzipCompressor returns a Compressor backed by compress/gzip at the given
// level (1-9).
func NewGzipCompressor(level int) Compressor {
	if level <= 0 {
		level = gzip.DefaultCompression
	}
	return &gzipCompressor{level: level}
}

func (c *gzipCompressor) Name() string { return "gzip" }
func (c *gzipCompressor) Level() int   { return c.level }

func (c *gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return nil, fmt.Errorf("zarr: create gzip writer: %w", err)
	}
	return zw, nil
}

func (c *gzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zarr: create gzip reader: %w", err)
	}
	return zr, nil
}

// -----------------------------------------------------------------------------
// Raw (no compression)
// -----------------------------------------------------------------------------

type rawCompressor struct{}

// NewRawCompressor returns a pass-through Compressor. Arrays created with it
// store chunks uncompressed and carry a null compressor in their metadata.
func NewRawCompressor() Compressor {
	return rawCompressor{}
}

func (rawCompressor) Name() string { return "" }
func (rawCompressor) Level() int   { return 0 }

func (rawCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (rawCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// compressorByName resolves the compressor named in array metadata. An empty
// name means no compression.
func compressorByName(name string, level int) (Compressor, error) {
	switch name {
	case "":
		return NewRawCompressor(), nil
	case "zstd":
		return NewZstdCompressor(level), nil
	case "gzip":
		return NewGzipCompressor(level), nil
	default:
		return nil, fmt.Errorf("zarr: compressor %q is not supported", name)
	}
}
