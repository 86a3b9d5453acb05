package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"hash"
)

var signerOptions = &ed25519.Options{
	Hash:    stdcrypto.SHA512,
	Context: SignatureContext,
}

// Signer produces an Ed25519ph signature over a payload submitted in
// any number of chunks. Only the running SHA-512 digest is kept, so the
// chunking never changes the signature.
type Signer struct {
	key      ed25519.PrivateKey
	digest   hash.Hash
	consumed bool
}

// NewSigner initializes a signer for the given private key.
func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: signing key is %d bytes", ErrInvalidKeyMaterial, len(key))
	}
	return &Signer{key: key, digest: sha512.New()}, nil
}

// Absorb adds the next chunk of the payload.
func (s *Signer) Absorb(chunk []byte) {
	s.digest.Write(chunk)
}

// Sign returns the signature over everything absorbed so far. It can be
// called once.
func (s *Signer) Sign() ([]byte, error) {
	if s.consumed {
		return nil, ErrSignerConsumed
	}
	s.consumed = true

	sig, err := s.key.Sign(nil, s.digest.Sum(nil), signerOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	s.digest.Reset()
	return sig, nil
}

// Verifier checks an Ed25519ph signature over a payload submitted in
// chunks.
type Verifier struct {
	key      ed25519.PublicKey
	digest   hash.Hash
	consumed bool
}

// NewVerifier initializes a verifier for the given public key.
func NewVerifier(key ed25519.PublicKey) (*Verifier, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: verification key is %d bytes", ErrInvalidKeyMaterial, len(key))
	}
	return &Verifier{key: key, digest: sha512.New()}, nil
}

// Absorb adds the next chunk of the payload.
func (v *Verifier) Absorb(chunk []byte) {
	v.digest.Write(chunk)
}

// Verify reports whether sig is a valid signature over everything
// absorbed. A second call always reports false.
func (v *Verifier) Verify(sig []byte) bool {
	if v.consumed {
		return false
	}
	v.consumed = true
	return ed25519.VerifyWithOptions(v.key, v.digest.Sum(nil), sig, signerOptions) == nil
}

// SignChunked signs payload by absorbing it in chunks of chunkSize.
func SignChunked(key ed25519.PrivateKey, payload []byte, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}
	s, err := NewSigner(key)
	if err != nil {
		return nil, err
	}
	for off := 0; off < len(payload); off += chunkSize {
		end := min(off+chunkSize, len(payload))
		s.Absorb(payload[off:end])
	}
	return s.Sign()
}

// VerifyChunked verifies sig over payload by absorbing it in chunks of
// chunkSize.
func VerifyChunked(key ed25519.PublicKey, payload, sig []byte, chunkSize int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}
	v, err := NewVerifier(key)
	if err != nil {
		return err
	}
	for off := 0; off < len(payload); off += chunkSize {
		end := min(off+chunkSize, len(payload))
		v.Absorb(payload[off:end])
	}
	if !v.Verify(sig) {
		return ErrSignatureVerificationFailed
	}
	return nil
}
