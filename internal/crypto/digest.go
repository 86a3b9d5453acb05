package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Digest returns the SHA-256 digest the server records for a
// ciphertext before applying its own encryption layer.
func Digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
