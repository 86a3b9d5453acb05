// Package envelope builds and opens transfer envelopes on the client.
//
// A sealed envelope carries the sender-encrypted payload as a list of
// ciphertext chunks together with everything the recipient needs to
// recompute the send key and check the sender's signature. The server
// key travels alongside but is only used for the server's at-rest layer.
package envelope

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"

	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/crypto"
)

// SealKeys names the parties of a transfer.
type SealKeys struct {
	// Sender holds the sender's agreement and signing keys. Anonymous
	// transfers pass a freshly generated pair.
	Sender *crypto.KeyPair
	// RecipientPublicKey is the recipient's PEM-encoded X25519 public key.
	RecipientPublicKey []byte
}

// Envelope is the output of Seal.
type Envelope struct {
	// Chunks is the sender-encrypted payload. Their concatenation is the
	// full ciphertext.
	Chunks [][]byte
	// IV is the initialization vector of the send layer.
	IV []byte
	// Signature is the Ed25519ph signature over the plaintext.
	Signature []byte
	// SignerPublicKey is the PEM-encoded Ed25519 public key of the sender.
	SignerPublicKey []byte
	// AgreementPublicKey is the PEM-encoded X25519 public key of the sender.
	AgreementPublicKey []byte
	// ServerKey is the key the server applies its at-rest layer with.
	ServerKey []byte
	// Size is the plaintext length in bytes.
	Size int64
}

// Ciphertext returns the concatenated chunks.
func (e *Envelope) Ciphertext() []byte {
	return bytes.Join(e.Chunks, nil)
}

// Wipe zeroes the server key and the ciphertext chunks.
func (e *Envelope) Wipe() {
	memguard.WipeBytes(e.ServerKey)
	for _, c := range e.Chunks {
		memguard.WipeBytes(c)
	}
	e.Chunks = nil
}

// Seal encrypts and signs everything read from r in a single pass.
// Every chunk is absorbed by the signer and fed to the cipher in the
// same order. A chunkSize of zero selects crypto.DefaultChunkSize.
//
// ctx is checked between chunks. On cancellation the partial envelope
// is wiped and ctx.Err() is returned.
func Seal(ctx context.Context, r io.Reader, keys SealKeys, chunkSize int) (*Envelope, error) {
	if chunkSize == 0 {
		chunkSize = crypto.DefaultChunkSize
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", crypto.ErrInvalidChunkSize, chunkSize)
	}
	if keys.Sender == nil {
		return nil, fmt.Errorf("%w: missing sender keys", crypto.ErrInvalidKeyMaterial)
	}

	recipient, err := crypto.ParseAgreementPublicKey(keys.RecipientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("recipient public key: %w", err)
	}

	derived, err := crypto.DeriveKeySet(&keys.Sender.AgreementPrivate, recipient)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(derived.SendKey)

	iv, err := crypto.GenerateIV()
	if err != nil {
		derived.Wipe()
		return nil, err
	}

	enc, err := crypto.NewStreamCipher(crypto.SendCipher, derived.SendKey, iv, true)
	if err != nil {
		derived.Wipe()
		return nil, err
	}
	defer enc.Wipe()

	signer, err := crypto.NewSigner(keys.Sender.SigningPrivate)
	if err != nil {
		derived.Wipe()
		return nil, err
	}

	env := &Envelope{
		IV:                 iv,
		SignerPublicKey:    keys.Sender.SigningPublicPEM(),
		AgreementPublicKey: keys.Sender.AgreementPublicPEM(),
		ServerKey:          derived.ServerKey,
	}

	chunks := crypto.NewChunkReader(r, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			env.Wipe()
			return nil, err
		}

		chunk, last, err := chunks.Next()
		if err != nil {
			env.Wipe()
			return nil, fmt.Errorf("read payload: %w", err)
		}
		env.Size += int64(len(chunk))
		signer.Absorb(chunk)

		var out []byte
		if last {
			out, err = enc.ProcessFinal(chunk)
		} else {
			out, err = enc.ProcessChunk(chunk)
		}
		memguard.WipeBytes(chunk)
		if err != nil {
			env.Wipe()
			return nil, err
		}
		if len(out) > 0 {
			env.Chunks = append(env.Chunks, out)
		}
		if last {
			break
		}
	}

	env.Signature, err = signer.Sign()
	if err != nil {
		env.Wipe()
		return nil, err
	}
	return env, nil
}

// Sealed is a received envelope as returned by the server.
type Sealed struct {
	Ciphertext         []byte
	IV                 []byte
	Signature          []byte
	SignerPublicKey    []byte
	AgreementPublicKey []byte
}

// Open recomputes the send key from the recipient's private agreement
// key and the sender's public agreement key, decrypts the ciphertext
// and verifies the signature over the plaintext. Failures match
// apierrors.ErrDecryptionFailed or apierrors.ErrSignatureInvalid.
func Open(s *Sealed, recipientPrivatePEM []byte) ([]byte, error) {
	derived, err := crypto.DeriveSymmetricKeys(recipientPrivatePEM, s.AgreementPublicKey)
	if err != nil {
		return nil, err
	}
	defer derived.Wipe()

	signerKey, err := crypto.ParseSigningPublicKey(s.SignerPublicKey)
	if err != nil {
		return nil, &apierrors.SignatureVerificationError{Message: err.Error()}
	}

	plaintext, err := crypto.Decrypt(crypto.SendCipher, derived.SendKey, s.IV, s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrDecryptionFailed, err)
	}

	err = crypto.VerifyChunked(signerKey, plaintext, s.Signature, crypto.DefaultChunkSize)
	if err != nil {
		memguard.WipeBytes(plaintext)
		if errors.Is(err, crypto.ErrSignatureVerificationFailed) {
			return nil, &apierrors.SignatureVerificationError{Message: "signature does not match payload"}
		}
		return nil, err
	}
	return plaintext, nil
}
