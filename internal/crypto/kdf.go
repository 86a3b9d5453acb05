package crypto

import (
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/dh/x25519"
	"golang.org/x/crypto/hkdf"
)

// DerivedKeySet holds the two symmetric keys derived from one key
// agreement.
type DerivedKeySet struct {
	// SendKey encrypts the payload end to end. Sender and recipient
	// derive the same value.
	SendKey []byte
	// ServerKey is handed to the server for its at-rest layer. It only
	// protects stored blobs against disk theft, not against the server.
	ServerKey []byte
}

// Wipe zeroes both keys.
func (d *DerivedKeySet) Wipe() {
	memguard.WipeBytes(d.SendKey)
	memguard.WipeBytes(d.ServerKey)
}

// DeriveKey derives a key using HKDF-SHA-512.
//
// Parameters:
//   - secret: the input key material (e.g., shared secret from X25519)
//   - salt: optional salt value; if empty, a zero-filled salt is used
//   - info: context/application-specific info for domain separation
//   - length: desired output key length in bytes
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// DeriveSymmetricKeys derives the send and server keys from a
// PEM-encoded local X25519 private key and a PEM-encoded peer X25519
// public key.
func DeriveSymmetricKeys(localPrivatePEM, peerPublicPEM []byte) (*DerivedKeySet, error) {
	priv, err := ParseAgreementPrivateKey(localPrivatePEM)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(priv[:])

	pub, err := ParseAgreementPublicKey(peerPublicPEM)
	if err != nil {
		return nil, err
	}

	return DeriveKeySet(priv, pub)
}

// DeriveKeySet computes the X25519 shared secret between localPrivate
// and peerPublic and expands it into two keys with distinct HKDF labels.
// X25519 is symmetric, so DeriveKeySet(a.priv, b.pub) and
// DeriveKeySet(b.priv, a.pub) return the same keys.
func DeriveKeySet(localPrivate, peerPublic *x25519.Key) (*DerivedKeySet, error) {
	var shared x25519.Key
	if !x25519.Shared(&shared, localPrivate, peerPublic) {
		return nil, fmt.Errorf("%w: low order X25519 public key", ErrInvalidKeyMaterial)
	}
	defer memguard.WipeBytes(shared[:])

	sendKey, err := DeriveKey(shared[:], nil, []byte(HKDFContext+SendKeyLabel), SendKeySize)
	if err != nil {
		return nil, err
	}
	serverKey, err := DeriveKey(shared[:], nil, []byte(HKDFContext+ServerKeyLabel), ServerKeySize)
	if err != nil {
		memguard.WipeBytes(sendKey)
		return nil, err
	}

	return &DerivedKeySet{SendKey: sendKey, ServerKey: serverKey}, nil
}
