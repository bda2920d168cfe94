// Package compression provides the byte codecs used to shrink payloads before they are base64 encoded.
package compression

import (
	"errors"
	"fmt"
	"strings"
)

const (
	NameZstd = "zstd"
	NameLZ4  = "lz4"
	NameGzip = "gzip"
)

var ErrUnknownCompressor = errors.New("unknown compressor")

// Compressor compresses and decompresses byte payloads.
// Decompress must reject input it did not produce with an error.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ByName returns the compressor registered under name. Matching is case-insensitive.
func ByName(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameZstd, "zstandard":
		return Zstd{}, nil
	case NameLZ4:
		return LZ4{}, nil
	case NameGzip, "gz":
		return Gzip{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompressor, name)
	}
}

// Names lists the canonical compressor names.
func Names() []string {
	return []string{NameZstd, NameLZ4, NameGzip}
}
