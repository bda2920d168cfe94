package compression

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCompressorsRoundTrip(t *testing.T) {
	inputs := []struct {
		desc string
		data []byte
	}{
		{"Short JSON", []byte(`{"a":1}`)},
		{"Repetitive text", []byte(strings.Repeat("hello world ", 500))},
		{"Unicode", []byte("こんにちは世界 ✓ ünïcödé")},
		{"Binary-ish", []byte{0x00, 0x01, 0xff, 0xfe, 0x7f}},
	}
	for _, name := range Names() {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) error = %v", name, err)
		}
		for _, in := range inputs {
			t.Run(name+"/"+in.desc, func(t *testing.T) {
				compressed, err := c.Compress(in.data)
				if err != nil {
					t.Fatalf("Compress() error = %v", err)
				}
				got, err := c.Decompress(compressed)
				if err != nil {
					t.Fatalf("Decompress() error = %v", err)
				}
				if !bytes.Equal(got, in.data) {
					t.Errorf("Decompress() = %q, want %q", got, in.data)
				}
			})
		}
	}
}

func TestCompressorsRejectForeignData(t *testing.T) {
	garbage := []byte("this was never compressed by anything")
	for _, name := range Names() {
		c, _ := ByName(name)
		t.Run(name, func(t *testing.T) {
			if _, err := c.Decompress(garbage); err == nil {
				t.Errorf("Decompress(garbage) expected error, got nil")
			}
		})
	}
}

func TestCompressorsRejectEachOther(t *testing.T) {
	payload := []byte(strings.Repeat(`{"k":"v"},`, 50))
	for _, from := range Names() {
		src, _ := ByName(from)
		compressed, err := src.Compress(payload)
		if err != nil {
			t.Fatalf("%s Compress() error = %v", from, err)
		}
		for _, to := range Names() {
			if to == from {
				continue
			}
			dst, _ := ByName(to)
			if _, err := dst.Decompress(compressed); err == nil {
				t.Errorf("%s.Decompress(%s output) expected error", to, from)
			}
		}
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"zstd", NameZstd, false},
		{" ZSTD ", NameZstd, false},
		{"zstandard", NameZstd, false},
		{"lz4", NameLZ4, false},
		{"gzip", NameGzip, false},
		{"gz", NameGzip, false},
		{"brotli", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ByName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ByName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCompressor) {
					t.Errorf("ByName(%q) error = %v, want ErrUnknownCompressor", tt.in, err)
				}
				return
			}
			if c.Name() != tt.want {
				t.Errorf("ByName(%q).Name() = %q, want %q", tt.in, c.Name(), tt.want)
			}
		})
	}
}
