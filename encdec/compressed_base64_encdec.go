package encdec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ppipada/filebridge-go/compression"
)

// CompressedBase64StringEncoderDecoder compresses a string and carries the result as standard base64 text.
// The empty string maps to itself in both directions.
type CompressedBase64StringEncoderDecoder struct {
	Compressor compression.Compressor
}

func (e CompressedBase64StringEncoderDecoder) Encode(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	compressed, err := e.compressor().Compress([]byte(plain))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompression, err)
	}
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func (e CompressedBase64StringEncoderDecoder) Decode(encoded string) (string, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	plain, err := e.compressor().Decompress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompression, err)
	}
	return string(plain), nil
}

func (e CompressedBase64StringEncoderDecoder) compressor() compression.Compressor {
	if e.Compressor == nil {
		return compression.Zstd{}
	}
	return e.Compressor
}

// decodeBase64 accepts padded or unpadded standard base64, ignoring whitespace and line breaks.
func decodeBase64(encoded string) ([]byte, error) {
	s := strings.Join(strings.Fields(encoded), "")
	s = strings.TrimRight(s, "=")
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to base64-decode: %w", ErrCompression, err)
	}
	return raw, nil
}
