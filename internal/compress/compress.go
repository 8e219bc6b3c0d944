// Package compress wraps the stream codecs used for store backups.
package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None indicates no compression.
	None Type = 0
	// LZ4 indicates LZ4 frame compression (fast).
	LZ4 Type = 1
	// ZSTD indicates Zstandard compression (better ratio).
	ZSTD Type = 2
	// Snappy indicates Snappy framed compression.
	Snappy Type = 3
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	case Snappy:
		return "snappy"
	}
	return fmt.Sprintf("compression(%d)", uint8(t))
}

// Valid reports whether t is a known algorithm.
func (t Type) Valid() bool { return t <= Snappy }

// Parse returns the Type named s (case insensitive).
func Parse(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	case "snappy":
		return Snappy, nil
	}
	return None, fmt.Errorf("unknown compression %q", s)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer compressing into w. Close flushes the stream
// but does not close w.
func NewWriter(w io.Writer, t Type) (io.WriteCloser, error) {
	switch t {
	case None:
		return nopWriteCloser{w}, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case ZSTD:
		// Level 3 balances compression ratio vs speed
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(t))
}

// NewReader returns a reader decompressing r. Close releases decoder
// resources but does not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(r), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case ZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(t))
}
