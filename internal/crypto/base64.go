package crypto

import (
	"encoding/base64"
	"fmt"
)

// ToBase64 encodes bytes to standard base64 with padding. All envelope
// fields travel in this encoding.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes standard base64 (with padding) to bytes.
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DecodeBase64 decodes base64 (standard or URL-safe, with or without
// padding) to bytes. Inbound envelope fields are decoded with this.
func DecodeBase64(s string) ([]byte, error) {
	// Try standard base64 with padding first
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	// Try standard base64 without padding
	data, err = base64.RawStdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	// Try URL-safe with padding
	data, err = base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	// Try URL-safe without padding
	return base64.RawURLEncoding.DecodeString(s)
}

// DecodeBase64Chunks decodes every chunk and returns their concatenation.
func DecodeBase64Chunks(chunks []string) ([]byte, error) {
	var out []byte
	for i, c := range chunks {
		b, err := DecodeBase64(c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}
