// Package apierrors provides the error taxonomy shared by the Crypter
// server and client.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the wire name of a transfer error, carried in the errorCode
// field of error responses.
type Code string

// Error codes.
const (
	CodeOutOfSpace                    Code = "OutOfSpace"
	CodeInvalidServerEncryptionKey    Code = "InvalidServerEncryptionKey"
	CodeInvalidCiphertext             Code = "InvalidCiphertext"
	CodeInvalidRequestedLifetimeHours Code = "InvalidRequestedLifetimeHours"
	CodeRecipientNotFound             Code = "RecipientNotFound"
	CodeBlockedByRecipientPrivacy     Code = "BlockedByRecipientPrivacy"
	CodeStorageIntegrityViolation     Code = "StorageIntegrityViolation"
	CodeNotFound                      Code = "NotFound"
	CodeUnknownError                  Code = "UnknownError"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrOutOfSpace is returned when accepting a transfer would exceed the
	// server's storage allocation.
	ErrOutOfSpace = errors.New("out of space")

	// ErrInvalidServerEncryptionKey is returned when the client-supplied
	// server key is not valid base64 or has the wrong length.
	ErrInvalidServerEncryptionKey = errors.New("invalid server encryption key")

	// ErrInvalidCiphertext is returned when an uploaded envelope field
	// cannot be decoded.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrInvalidRequestedLifetimeHours is returned when the requested
	// lifetime is outside 1 to 24 hours.
	ErrInvalidRequestedLifetimeHours = errors.New("invalid requested lifetime hours")

	// ErrRecipientNotFound is returned when a named recipient does not exist.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrBlockedByRecipientPrivacy is returned when the recipient does not
	// accept transfers of this kind from this sender.
	ErrBlockedByRecipientPrivacy = errors.New("blocked by recipient privacy settings")

	// ErrStorageIntegrityViolation is returned when stored data no longer
	// matches the digest recorded on admission. It is never retried.
	ErrStorageIntegrityViolation = errors.New("storage integrity violation")

	// ErrNotFound is returned when a transfer does not exist, has expired,
	// or is not visible to the requestor.
	ErrNotFound = errors.New("transfer not found")

	// ErrUnknown is returned for internal failures.
	ErrUnknown = errors.New("unknown error")

	// ErrMissingBaseURL is returned when a client is created without a
	// server URL.
	ErrMissingBaseURL = errors.New("server URL is required")

	// ErrDecryptionFailed is returned when a received transfer cannot be
	// decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("signature verification failed")
)

var sentinels = map[Code]error{
	CodeOutOfSpace:                    ErrOutOfSpace,
	CodeInvalidServerEncryptionKey:    ErrInvalidServerEncryptionKey,
	CodeInvalidCiphertext:             ErrInvalidCiphertext,
	CodeInvalidRequestedLifetimeHours: ErrInvalidRequestedLifetimeHours,
	CodeRecipientNotFound:             ErrRecipientNotFound,
	CodeBlockedByRecipientPrivacy:     ErrBlockedByRecipientPrivacy,
	CodeStorageIntegrityViolation:     ErrStorageIntegrityViolation,
	CodeNotFound:                      ErrNotFound,
	CodeUnknownError:                  ErrUnknown,
}

// Err returns the sentinel error for c, or ErrUnknown for an
// unrecognized code.
func (c Code) Err() error {
	if err, ok := sentinels[c]; ok {
		return err
	}
	return ErrUnknown
}

// StatusCode returns the HTTP status a server responds with for c.
func (c Code) StatusCode() int {
	switch c {
	case CodeInvalidServerEncryptionKey, CodeInvalidCiphertext, CodeInvalidRequestedLifetimeHours:
		return http.StatusBadRequest
	case CodeNotFound, CodeRecipientNotFound:
		return http.StatusNotFound
	case CodeBlockedByRecipientPrivacy:
		return http.StatusForbidden
	case CodeOutOfSpace:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf maps err to its taxonomy code. Errors that match no sentinel
// are CodeUnknownError.
func CodeOf(err error) Code {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknownError
}

// APIError represents an error response from a Crypter server.
type APIError struct {
	StatusCode int
	Code       Code
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	desc := fmt.Sprintf("API error %d", e.StatusCode)
	if e.Code != "" {
		desc += " " + string(e.Code)
	}
	if e.Message != "" {
		desc += ": " + e.Message
	}
	if e.RequestID != "" {
		desc += fmt.Sprintf(" (request_id: %s)", e.RequestID)
	}
	return desc
}

// Is implements errors.Is for sentinel error matching. Responses
// without an error code fall back to the status code.
func (e *APIError) Is(target error) bool {
	if e.Code != "" {
		return target == e.Code.Err()
	}
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusInsufficientStorage:
		return target == ErrOutOfSpace
	}
	return false
}

// Retryable reports whether the request that produced e may be retried.
// Integrity violations are permanent.
func (e *APIError) Retryable() bool {
	return e.Code != CodeStorageIntegrityViolation
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SignatureVerificationError indicates signature verification failed,
// including a signer key that differs from the one the caller expected.
type SignatureVerificationError struct {
	Message       string
	IsKeyMismatch bool
}

func (e *SignatureVerificationError) Error() string {
	if e.IsKeyMismatch {
		return fmt.Sprintf("signer key mismatch: %s", e.Message)
	}
	return fmt.Sprintf("signature verification failed: %s", e.Message)
}

// Is implements errors.Is for sentinel error matching.
// All signature verification failures match ErrSignatureInvalid.
func (e *SignatureVerificationError) Is(target error) bool {
	return target == ErrSignatureInvalid
}
