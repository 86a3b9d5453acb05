package crypter

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the payload type of a transfer.
type Kind string

// Transfer kinds.
const (
	KindMessage Kind = "message"
	KindFile    Kind = "file"
)

// Receipt acknowledges an uploaded transfer.
type Receipt struct {
	ID         uuid.UUID
	Kind       Kind
	Expiration time.Time
	// ShareKey is the PEM-encoded recipient private key generated for a
	// transfer sent without WithRecipientPublicKey. Whoever holds the id
	// and the share key can open the transfer. Nil otherwise.
	ShareKey []byte
}

// Preview is the unencrypted metadata of a transfer.
type Preview struct {
	ID          uuid.UUID
	Kind        Kind
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	// Subject is set for messages.
	Subject string
	// FileName and ContentType are set for files.
	FileName    string
	ContentType string
	// Size is the ciphertext size in bytes.
	Size       int64
	Created    time.Time
	Expiration time.Time
}

// Summary is one entry of a Sent or Received listing.
type Summary struct {
	ID          uuid.UUID
	Kind        Kind
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	Subject     string
	FileName    string
	Size        int64
	Created     time.Time
	Expiration  time.Time
}

// Received is an opened transfer.
type Received struct {
	Plaintext []byte
	// SignerPublicKey is the PEM-encoded Ed25519 key the transfer was
	// signed with.
	SignerPublicKey []byte
}
