package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/dh/x25519"
)

// randReader is the random source used for key and IV generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func randSource() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// KeyPair holds one party's X25519 key-agreement key and Ed25519
// signing key. The private halves never leave the client.
type KeyPair struct {
	// AgreementPrivate is the X25519 private scalar.
	AgreementPrivate x25519.Key
	// AgreementPublic is the X25519 public key.
	AgreementPublic x25519.Key
	// SigningPrivate is the Ed25519 private key.
	SigningPrivate ed25519.PrivateKey
	// SigningPublic is the Ed25519 public key.
	SigningPublic ed25519.PublicKey
}

// GenerateKeyPair creates a new key pair. Anonymous transfers use one
// freshly generated pair per transfer.
func GenerateKeyPair() (*KeyPair, error) {
	kp := new(KeyPair)
	if _, err := io.ReadFull(randSource(), kp.AgreementPrivate[:]); err != nil {
		return nil, fmt.Errorf("failed to generate agreement key: %w", err)
	}
	x25519.KeyGen(&kp.AgreementPublic, &kp.AgreementPrivate)

	pub, priv, err := ed25519.GenerateKey(randSource())
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	kp.SigningPublic = pub
	kp.SigningPrivate = priv

	return kp, nil
}

// KeyPairFromPEM reconstructs a key pair from its two PEM-encoded
// private keys. The public halves are recomputed.
func KeyPairFromPEM(agreementPrivatePEM, signingPrivatePEM []byte) (*KeyPair, error) {
	agreement, err := ParseAgreementPrivateKey(agreementPrivatePEM)
	if err != nil {
		return nil, err
	}
	signing, err := ParseSigningPrivateKey(signingPrivatePEM)
	if err != nil {
		return nil, err
	}

	kp := &KeyPair{
		AgreementPrivate: *agreement,
		SigningPrivate:   signing,
		SigningPublic:    signing.Public().(ed25519.PublicKey),
	}
	x25519.KeyGen(&kp.AgreementPublic, &kp.AgreementPrivate)
	memguard.WipeBytes(agreement[:])
	return kp, nil
}

// AgreementPrivatePEM returns the PEM encoding of the X25519 private key.
func (k *KeyPair) AgreementPrivatePEM() []byte {
	return EncodePEM(PEMTypeX25519Private, k.AgreementPrivate[:])
}

// AgreementPublicPEM returns the PEM encoding of the X25519 public key.
func (k *KeyPair) AgreementPublicPEM() []byte {
	return EncodePEM(PEMTypeX25519Public, k.AgreementPublic[:])
}

// SigningPrivatePEM returns the PEM encoding of the Ed25519 seed.
func (k *KeyPair) SigningPrivatePEM() []byte {
	return EncodePEM(PEMTypeEd25519Private, k.SigningPrivate.Seed())
}

// SigningPublicPEM returns the PEM encoding of the Ed25519 public key.
func (k *KeyPair) SigningPublicPEM() []byte {
	return EncodePEM(PEMTypeEd25519Public, k.SigningPublic)
}

// Wipe zeroes the private halves.
func (k *KeyPair) Wipe() {
	memguard.WipeBytes(k.AgreementPrivate[:])
	memguard.WipeBytes(k.SigningPrivate)
}
