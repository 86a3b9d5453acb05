package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello")},
		{"binary zeros", []byte{0x00, 0x00, 0x00}},
		{"binary mixed", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"url unsafe chars", []byte{0xfb, 0xf0}},
		{"large data", make([]byte, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := ToBase64(tt.data)
			decoded, err := FromBase64(encoded)
			if err != nil {
				t.Fatalf("FromBase64() error = %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip failed: got %v, want %v", decoded, tt.data)
			}
		})
	}
}

func TestDecodeBase64_AcceptsAllVariants(t *testing.T) {
	data := []byte{0xfb, 0xff, 0x3f, 0xff, 0x01}

	encodings := map[string]*base64.Encoding{
		"std":     base64.StdEncoding,
		"raw std": base64.RawStdEncoding,
		"url":     base64.URLEncoding,
		"raw url": base64.RawURLEncoding,
	}

	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeBase64(enc.EncodeToString(data))
			if err != nil {
				t.Fatalf("DecodeBase64() error = %v", err)
			}
			if !bytes.Equal(decoded, data) {
				t.Errorf("decoded = %x, want %x", decoded, data)
			}
		})
	}
}

func TestDecodeBase64_InvalidInput(t *testing.T) {
	tests := []string{
		"!!!",
		"a",
		"abc$def",
	}

	for _, input := range tests {
		if _, err := DecodeBase64(input); err == nil {
			t.Errorf("DecodeBase64(%q) expected error", input)
		}
	}
}

func TestDecodeBase64Chunks(t *testing.T) {
	chunks := []string{ToBase64([]byte("hello ")), ToBase64([]byte("chunked ")), ToBase64([]byte("world"))}

	got, err := DecodeBase64Chunks(chunks)
	if err != nil {
		t.Fatalf("DecodeBase64Chunks() error = %v", err)
	}
	if string(got) != "hello chunked world" {
		t.Errorf("DecodeBase64Chunks() = %q", got)
	}

	if _, err := DecodeBase64Chunks([]string{chunks[0], "not base64!"}); err == nil {
		t.Error("expected error for invalid chunk")
	}
}
