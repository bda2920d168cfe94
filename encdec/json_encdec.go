package encdec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

// JSONEncoderDecoder is the indented JSON codec used for store files.
type JSONEncoderDecoder struct{}

// Encode encodes the given value into JSON format and writes it to the writer.
func (d JSONEncoderDecoder) Encode(w io.Writer, value any) error {
	if w == nil {
		return errors.New("writer cannot be nil")
	}

	encoder := json.NewEncoder(w)
	// For pretty output.
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	return nil
}

// Decode decodes JSON data from the reader into the given value.
func (d JSONEncoderDecoder) Decode(r io.Reader, value any) error {
	if r == nil {
		return errors.New("reader cannot be nil")
	}

	if _, err := requireNonNilPointer(value, "value"); err != nil {
		return err
	}

	decoder := newDecoder(r, true) // Disallow unknown fields
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return nil
}

// MarshalPayload serializes value to compact JSON without HTML escaping, the same text JSON.stringify produces.
func MarshalPayload(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	// Encoder.Encode always terminates the value with a newline.
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// ParsePayload parses exactly one JSON value from raw into its generic form
// (map[string]any, []any, string, float64, bool or nil).
// Blank input and trailing data after the value are errors.
func ParsePayload(raw string) (any, error) {
	data := []byte(raw)
	if isBlankJSON(data) {
		return nil, fmt.Errorf("%w: empty JSON input", ErrSerialization)
	}
	var v any
	if err := decodeBytes(data, &v, false, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return v, nil
}

func requireNonNilPointer(p any, name string) (reflect.Value, error) {
	if p == nil {
		return reflect.Value{}, fmt.Errorf("%s cannot be nil", name)
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s must be a non-nil pointer", name)
	}
	return rv, nil
}

// decodeBytes decodes JSON bytes into out with options:
// - disallowUnknown: Disallow unknown fields if true.
// - requireEOF: Reject trailing JSON after the first value if true.
func decodeBytes(data []byte, out any, disallowUnknown, requireEOF bool) error {
	dec := newDecoder(bytes.NewReader(data), disallowUnknown)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	if requireEOF {
		if err := requireNoTrailing(dec); err != nil {
			return err
		}
	}
	return nil
}

func newDecoder(r io.Reader, disallowUnknown bool) *json.Decoder {
	dec := json.NewDecoder(r)
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	return dec
}

// requireNoTrailing ensures there is no trailing data after the first JSON value.
func requireNoTrailing(dec *json.Decoder) error {
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected trailing data after JSON value")
		}
		return fmt.Errorf("trailing data validation: %w", err)
	}
	return nil
}

func isBlankJSON(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
