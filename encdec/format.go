package encdec

import "strings"

// Format names the textual shape of an encoded payload.
// The shape is not recorded in the payload itself; callers must remember it or let Decode detect it.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatBase64 Format = "base64"
	FormatRaw    Format = "raw"
)

// ParseFormat normalizes a user supplied format tag.
// "b64" and "64" are accepted for base64, an empty tag means text.
// Unrecognized tags are returned lower-cased and are treated like text by Encode and DecodeAs.
func ParseFormat(s string) Format {
	f := strings.ToLower(strings.TrimSpace(s))
	switch f {
	case "":
		return FormatText
	case "b64", "64":
		return FormatBase64
	default:
		return Format(f)
	}
}

// Known reports whether f is one of the named formats.
func (f Format) Known() bool {
	switch f {
	case FormatText, FormatJSON, FormatBase64, FormatRaw:
		return true
	}
	return false
}
