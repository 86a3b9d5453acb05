package crypto

import "errors"

var (
	// ErrInvalidKeySize is returned when a symmetric key does not match the
	// cipher suite's key length.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidIVSize is returned when an IV is not exactly one block long.
	ErrInvalidIVSize = errors.New("invalid IV size")

	// ErrInvalidPadding is returned when PKCS#7 padding fails to validate
	// on decryption.
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrInvalidCiphertextSize is returned when ciphertext handed to the
	// final decryption step is not a positive multiple of the block size.
	ErrInvalidCiphertextSize = errors.New("invalid ciphertext size")

	// ErrCipherFinalized is returned when a stream cipher is used after
	// ProcessFinal.
	ErrCipherFinalized = errors.New("cipher already finalized")

	// ErrSignerConsumed is returned when a signer or verifier is asked for
	// a second result.
	ErrSignerConsumed = errors.New("signature accumulator already consumed")

	// ErrInvalidKeyMaterial is returned when a key cannot be parsed or does
	// not belong to the expected algorithm.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrSignatureVerificationFailed is returned when signature verification fails.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidChunkSize is returned when a streaming helper is given a
	// non-positive chunk size.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
)
