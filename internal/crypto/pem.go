package crypto

import (
	"crypto/ed25519"
	"encoding/pem"
	"fmt"

	"github.com/cloudflare/circl/dh/x25519"
)

// PEM block types for the canonical text encoding of transfer keys.
// Block bodies carry the raw key bytes.
const (
	PEMTypeX25519Private  = "X25519 PRIVATE KEY"
	PEMTypeX25519Public   = "X25519 PUBLIC KEY"
	PEMTypeEd25519Private = "ED25519 PRIVATE KEY"
	PEMTypeEd25519Public  = "ED25519 PUBLIC KEY"
)

// EncodePEM encodes raw key bytes as a PEM block of the given type.
func EncodePEM(keyType string, key []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  keyType,
		Bytes: key,
	})
}

// DecodePEM decodes a single PEM block of the given type and checks its
// body length.
func DecodePEM(keyType string, data []byte, size int) ([]byte, error) {
	blk, _ := pem.Decode(data)
	if blk == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKeyMaterial)
	}
	if blk.Type != keyType {
		return nil, fmt.Errorf("%w: PEM type %q, want %q", ErrInvalidKeyMaterial, blk.Type, keyType)
	}
	if len(blk.Bytes) != size {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrInvalidKeyMaterial, keyType, len(blk.Bytes), size)
	}
	return blk.Bytes, nil
}

// ParseAgreementPrivateKey parses a PEM-encoded X25519 private key.
func ParseAgreementPrivateKey(data []byte) (*x25519.Key, error) {
	raw, err := DecodePEM(PEMTypeX25519Private, data, X25519KeySize)
	if err != nil {
		return nil, err
	}
	var k x25519.Key
	copy(k[:], raw)
	return &k, nil
}

// ParseAgreementPublicKey parses a PEM-encoded X25519 public key.
func ParseAgreementPublicKey(data []byte) (*x25519.Key, error) {
	raw, err := DecodePEM(PEMTypeX25519Public, data, X25519KeySize)
	if err != nil {
		return nil, err
	}
	var k x25519.Key
	copy(k[:], raw)
	return &k, nil
}

// ParseSigningPrivateKey parses a PEM-encoded Ed25519 seed.
func ParseSigningPrivateKey(data []byte) (ed25519.PrivateKey, error) {
	seed, err := DecodePEM(PEMTypeEd25519Private, data, Ed25519SeedSize)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// ParseSigningPublicKey parses a PEM-encoded Ed25519 public key.
func ParseSigningPublicKey(data []byte) (ed25519.PublicKey, error) {
	raw, err := DecodePEM(PEMTypeEd25519Public, data, Ed25519PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(raw), nil
}
