package encdec

import (
	"errors"
	"fmt"

	"github.com/ppipada/filebridge-go/compression"
)

// PayloadCodec turns in-memory values into exportable strings and back.
// It is stateless after construction and safe for concurrent use.
type PayloadCodec struct {
	compressor compression.Compressor
	fallbacks  []compression.Compressor
}

// PayloadOption configures a PayloadCodec.
type PayloadOption func(*PayloadCodec)

// WithCompressor sets the compressor used by the base64 format. A nil compressor is ignored.
func WithCompressor(c compression.Compressor) PayloadOption {
	return func(pc *PayloadCodec) {
		if c != nil {
			pc.compressor = c
		}
	}
}

// WithFallbackCompressors sets the compressors Decode tries, in order, after the primary one.
func WithFallbackCompressors(cs ...compression.Compressor) PayloadOption {
	return func(pc *PayloadCodec) {
		pc.fallbacks = nil
		for _, c := range cs {
			if c != nil {
				pc.fallbacks = append(pc.fallbacks, c)
			}
		}
	}
}

// NewPayloadCodec returns a codec that compresses with zstd and also recognizes lz4 and gzip when decoding.
func NewPayloadCodec(opts ...PayloadOption) *PayloadCodec {
	pc := &PayloadCodec{
		compressor: compression.Zstd{},
		fallbacks:  []compression.Compressor{compression.LZ4{}, compression.Gzip{}},
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// Default is the codec behind the package level Encode, Decode and DecodeAs.
var Default = NewPayloadCodec()

func Encode(value any, format Format) (string, error) { return Default.Encode(value, format) }

func Decode(raw string) (any, error) { return Default.Decode(raw) }

func DecodeAs(raw string, format Format) (any, error) { return Default.DecodeAs(raw, format) }

// Compressor returns the compressor used for the base64 format.
func (c *PayloadCodec) Compressor() compression.Compressor {
	return c.compressor
}

// Encode renders value in the given format.
//   - text: strings pass through unchanged, anything else is JSON.
//   - json: JSON text.
//   - base64: JSON text, compressed, then base64 encoded.
//
// Unrecognized formats behave like text. A nil value is JSON null.
func (c *PayloadCodec) Encode(value any, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return MarshalPayload(value)
	case FormatBase64:
		s, err := MarshalPayload(value)
		if err != nil {
			return "", err
		}
		return c.CompressString(s)
	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return MarshalPayload(value)
	}
}

// Decode recovers a value from a string of unknown format.
// It parses raw as JSON first and, only if that fails, as compressed base64 JSON.
// A string that is valid JSON is always returned as JSON.
func (c *PayloadCodec) Decode(raw string) (any, error) {
	v, jsonErr := ParsePayload(raw)
	if jsonErr == nil {
		return v, nil
	}
	v, err := c.decodeCompressed(raw)
	if err != nil {
		return nil, fmt.Errorf("payload is neither JSON (%v) nor compressed JSON: %w", jsonErr, err)
	}
	return v, nil
}

// DecodeAs decodes raw in a format the caller already knows.
// text, raw and unrecognized formats return raw unchanged.
func (c *PayloadCodec) DecodeAs(raw string, format Format) (any, error) {
	switch format {
	case FormatJSON:
		return ParsePayload(raw)
	case FormatBase64:
		return c.decodeCompressed(raw)
	default:
		return raw, nil
	}
}

// CompressString compresses text with the primary compressor and base64 encodes it.
func (c *PayloadCodec) CompressString(text string) (string, error) {
	return CompressedBase64StringEncoderDecoder{Compressor: c.compressor}.Encode(text)
}

// DecompressString is the inverse of CompressString.
// Every known compressor is tried, so text produced with a different primary compressor still decodes.
func (c *PayloadCodec) DecompressString(encoded string) (string, error) {
	var errs []error
	for _, cp := range c.decodeOrder() {
		s, err := CompressedBase64StringEncoderDecoder{Compressor: cp}.Decode(encoded)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// decodeCompressed tries each compressor in decode order and returns the first result that parses as JSON.
func (c *PayloadCodec) decodeCompressed(raw string) (any, error) {
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCompression)
	}

	var (
		errs         []error
		decompressed bool
	)
	for _, cp := range c.decodeOrder() {
		plain, err := cp.Decompress(data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		decompressed = true
		v, err := ParsePayload(string(plain))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cp.Name(), err))
			continue
		}
		return v, nil
	}

	if decompressed {
		return nil, fmt.Errorf("%w: decompressed data is not JSON: %w", ErrSerialization, errors.Join(errs...))
	}
	return nil, fmt.Errorf("%w: %w", ErrCompression, errors.Join(errs...))
}

func (c *PayloadCodec) decodeOrder() []compression.Compressor {
	order := make([]compression.Compressor, 0, 1+len(c.fallbacks))
	order = append(order, c.compressor)
	for _, fb := range c.fallbacks {
		if fb.Name() == c.compressor.Name() {
			continue
		}
		order = append(order, fb)
	}
	return order
}
