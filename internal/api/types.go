package api

import (
	"time"

	"github.com/google/uuid"
)

// UploadRequestBase holds the envelope fields common to every upload.
// Binary fields are base64; public keys are PEM.
type UploadRequestBase struct {
	Ciphertext             []string `json:"ciphertext"`
	ClientIV               string   `json:"clientIV"`
	DigitalSignature       string   `json:"digitalSignature"`
	DigitalSignaturePubKey string   `json:"digitalSignaturePublicKey"`
	KeyAgreementPublicKey  string   `json:"keyAgreementPublicKey"`
	ServerEncryptionKey    string   `json:"serverEncryptionKey"`
	RequestedLifetimeHours int      `json:"requestedLifetimeHours"`
}

// UploadMessageRequest is the body of a message upload.
type UploadMessageRequest struct {
	UploadRequestBase
	Subject string `json:"subject"`
}

// UploadFileRequest is the body of a file upload.
type UploadFileRequest struct {
	UploadRequestBase
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
}

// UploadResponse acknowledges an admitted transfer.
type UploadResponse struct {
	ID         uuid.UUID `json:"id"`
	Expiration time.Time `json:"expiration"`
}

// PreviewResponse is the metadata of a transfer.
type PreviewResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Kind                  string     `json:"kind"`
	SenderID              *uuid.UUID `json:"senderId,omitempty"`
	RecipientID           *uuid.UUID `json:"recipientId,omitempty"`
	Subject               string     `json:"subject,omitempty"`
	FileName              string     `json:"fileName,omitempty"`
	ContentType           string     `json:"contentType,omitempty"`
	Size                  int64      `json:"size"`
	KeyAgreementPublicKey string     `json:"keyAgreementPublicKey"`
	Created               time.Time  `json:"created"`
	Expiration            time.Time  `json:"expiration"`
}

// CiphertextResponse carries the sender-encrypted payload.
type CiphertextResponse struct {
	Ciphertext            []string `json:"ciphertext"`
	ClientIV              string   `json:"clientIV"`
	KeyAgreementPublicKey string   `json:"keyAgreementPublicKey"`
}

// SignatureResponse carries the sender's signature.
type SignatureResponse struct {
	DigitalSignature       string `json:"digitalSignature"`
	DigitalSignaturePubKey string `json:"digitalSignaturePublicKey"`
}

// TransferSummary is one entry of a user's transfer listing.
type TransferSummary struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	SenderID    *uuid.UUID `json:"senderId,omitempty"`
	RecipientID *uuid.UUID `json:"recipientId,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	Size        int64      `json:"size"`
	Created     time.Time  `json:"created"`
	Expiration  time.Time  `json:"expiration"`
}

// TransferListResponse lists a user's unexpired transfers, newest first.
type TransferListResponse struct {
	Transfers []TransferSummary `json:"transfers"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
