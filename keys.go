package crypter

import (
	"fmt"
	"time"

	"github.com/crypter-io/crypter-go/internal/crypto"
)

// KeyFileVersion is the current key file format version.
const KeyFileVersion = 1

// Keys is a user's long-term key-agreement and signing key pair.
type Keys struct {
	kp *crypto.KeyPair
}

// GenerateKeys creates a new key pair.
func GenerateKeys() (*Keys, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &Keys{kp: kp}, nil
}

// AgreementPublicKey returns the PEM-encoded X25519 public key senders
// encrypt to.
func (k *Keys) AgreementPublicKey() []byte {
	return k.kp.AgreementPublicPEM()
}

// AgreementPrivateKey returns the PEM-encoded X25519 private key that
// opens transfers sent to AgreementPublicKey.
func (k *Keys) AgreementPrivateKey() []byte {
	return k.kp.AgreementPrivatePEM()
}

// SigningPublicKey returns the PEM-encoded Ed25519 public key recipients
// can pin with WithTrustedSigner.
func (k *Keys) SigningPublicKey() []byte {
	return k.kp.SigningPublicPEM()
}

// Wipe zeroes the private keys. k must not be used afterwards.
func (k *Keys) Wipe() {
	k.kp.Wipe()
}

// Export returns the key file for k.
// WARNING: the key file contains private key material - handle securely.
func (k *Keys) Export() *KeyFile {
	return &KeyFile{
		Version:             KeyFileVersion,
		AgreementPrivateKey: string(k.kp.AgreementPrivatePEM()),
		SigningPrivateKey:   string(k.kp.SigningPrivatePEM()),
		ExportedAt:          time.Now().UTC(),
	}
}

// KeyFile is the serialized form of Keys. The public halves are not
// stored; they are derived from the private keys on import.
type KeyFile struct {
	// Version is the format version. MUST be 1.
	Version int `json:"version"`
	// AgreementPrivateKey is the PEM-encoded X25519 private key.
	AgreementPrivateKey string `json:"agreementPrivateKey"`
	// SigningPrivateKey is the PEM-encoded Ed25519 seed.
	SigningPrivateKey string `json:"signingPrivateKey"`
	// ExportedAt is informational only.
	ExportedAt time.Time `json:"exportedAt"`
}

// Validate checks the key file's version and key material.
func (f *KeyFile) Validate() error {
	if f.Version != KeyFileVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidKeyFile, f.Version, KeyFileVersion)
	}
	if f.AgreementPrivateKey == "" {
		return fmt.Errorf("%w: agreementPrivateKey is required", ErrInvalidKeyFile)
	}
	if f.SigningPrivateKey == "" {
		return fmt.Errorf("%w: signingPrivateKey is required", ErrInvalidKeyFile)
	}
	return nil
}

// ImportKeys reconstructs Keys from a key file.
func ImportKeys(f *KeyFile) (*Keys, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	kp, err := crypto.KeyPairFromPEM([]byte(f.AgreementPrivateKey), []byte(f.SigningPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFile, err)
	}
	return &Keys{kp: kp}, nil
}
