package io

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is a stream compression format for file sources and sinks.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecGzip   Codec = "gzip"
	CodecZstd   Codec = "zstd"
	CodecSnappy Codec = "snappy"
	CodecLZ4    Codec = "lz4"
	CodecBrotli Codec = "brotli"
)

var codecExtensions = map[string]Codec{
	".gz":     CodecGzip,
	".zst":    CodecZstd,
	".sz":     CodecSnappy,
	".snappy": CodecSnappy,
	".lz4":    CodecLZ4,
	".br":     CodecBrotli,
}

// ParseCodec resolves a codec name. The empty string is CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(strings.ToLower(name)); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecGzip, CodecZstd, CodecSnappy, CodecLZ4, CodecBrotli:
		return c, nil
	}
	return "", fmt.Errorf("unknown codec %q", name)
}

// CodecForPath picks a codec from a file extension.
func CodecForPath(path string) Codec {
	if c, ok := codecExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return CodecNone
}

// NewReader wraps r with a decompressor. Closing the result does not close r.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case "", CodecNone:
		return io.NopCloser(r), nil
	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unknown codec %q", string(c))
}

// NewWriter wraps w with a compressor. The result must be closed to flush
// the stream; closing it does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case "", CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zw, nil
	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecBrotli:
		return brotli.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unknown codec %q", string(c))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
