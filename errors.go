package crypter

import (
	"errors"

	"github.com/crypter-io/crypter-go/internal/apierrors"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingBaseURL is returned when no server URL is provided.
	ErrMissingBaseURL = apierrors.ErrMissingBaseURL

	// ErrMissingRecipientKey is returned when a transfer names a recipient
	// without supplying that recipient's public key.
	ErrMissingRecipientKey = errors.New("recipient public key is required for a named recipient")

	// ErrMissingUserID is returned when listing transfers on a client
	// created without WithUserID.
	ErrMissingUserID = errors.New("user id is required to list transfers")

	// ErrInvalidKeyFile is returned when exported key data is invalid.
	ErrInvalidKeyFile = errors.New("invalid key file")

	// ErrOutOfSpace is returned when the server has no room for the transfer.
	ErrOutOfSpace = apierrors.ErrOutOfSpace

	// ErrInvalidServerEncryptionKey is returned when the server rejects
	// the at-rest key.
	ErrInvalidServerEncryptionKey = apierrors.ErrInvalidServerEncryptionKey

	// ErrInvalidCiphertext is returned when the server rejects the
	// uploaded envelope.
	ErrInvalidCiphertext = apierrors.ErrInvalidCiphertext

	// ErrInvalidRequestedLifetimeHours is returned for a lifetime outside
	// 1 to 24 hours.
	ErrInvalidRequestedLifetimeHours = apierrors.ErrInvalidRequestedLifetimeHours

	// ErrRecipientNotFound is returned when the named recipient does not exist.
	ErrRecipientNotFound = apierrors.ErrRecipientNotFound

	// ErrBlockedByRecipientPrivacy is returned when the recipient does not
	// accept this transfer.
	ErrBlockedByRecipientPrivacy = apierrors.ErrBlockedByRecipientPrivacy

	// ErrStorageIntegrityViolation is returned when the server detected
	// tampering with stored data.
	ErrStorageIntegrityViolation = apierrors.ErrStorageIntegrityViolation

	// ErrNotFound is returned when a transfer does not exist, has expired,
	// or belongs to someone else.
	ErrNotFound = apierrors.ErrNotFound

	// ErrUnknown is returned for unclassified server failures.
	ErrUnknown = apierrors.ErrUnknown

	// ErrDecryptionFailed is returned when a transfer cannot be decrypted
	// with the given key.
	ErrDecryptionFailed = apierrors.ErrDecryptionFailed

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = apierrors.ErrSignatureInvalid
)

// APIError represents an error response from a Crypter server.
type APIError = apierrors.APIError

// ErrorCode is the wire name of a server error.
type ErrorCode = apierrors.Code

// NetworkError represents a network-level failure.
type NetworkError = apierrors.NetworkError

// SignatureVerificationError indicates potential tampering or an
// unexpected signer.
type SignatureVerificationError = apierrors.SignatureVerificationError
