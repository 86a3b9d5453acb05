// Package transfer implements the server side of the transfer pipeline:
// admission and at-rest encryption of uploaded envelopes, retrieval with
// integrity verification, and the expiration sweep.
//
// The server never sees plaintext. It applies its own encryption layer
// under a client-supplied key and records a digest of the ciphertext as
// received, so that tampering with stored data is detected on retrieval.
package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects the payload type of a transfer.
type Kind string

// Transfer kinds.
const (
	KindMessage Kind = "message"
	KindFile    Kind = "file"
)

// DefaultContentType is recorded for files uploaded without one.
const DefaultContentType = "application/unknown"

const (
	// MinLifetimeHours is the shortest lifetime a transfer may request.
	MinLifetimeHours = 1
	// MaxLifetimeHours is the longest lifetime a transfer may request.
	MaxLifetimeHours = 24
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindMessage, KindFile:
		return k, true
	}
	return "", false
}

// Payload is the kind-specific, unencrypted metadata of a transfer.
type Payload struct {
	Kind Kind
	// Subject is set for messages.
	Subject string
	// FileName and ContentType are set for files.
	FileName    string
	ContentType string
}

// Envelope is a stored transfer. It is immutable once admitted.
type Envelope struct {
	ID          uuid.UUID
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	Payload     Payload

	// Size is the length of the ciphertext as received.
	Size int64

	ClientIV           []byte
	Signature          []byte
	SignerPublicKey    []byte
	AgreementPublicKey []byte

	ServerIV     []byte
	ServerDigest []byte
	ServerKey    []byte

	Created    time.Time
	Expiration time.Time
}

// Expired reports whether e has expired at now.
func (e *Envelope) Expired(now time.Time) bool {
	return !e.Expiration.After(now)
}

// VisibleTo reports whether requestor may retrieve e. Transfers without
// a recipient are reachable by anyone holding their id.
func (e *Envelope) VisibleTo(requestor *uuid.UUID) bool {
	if e.RecipientID == nil {
		return true
	}
	return requestor != nil && *requestor == *e.RecipientID
}

// UploadRequest is an upload as it arrives on the wire. Binary fields
// are base64 and the public keys are PEM.
type UploadRequest struct {
	Payload Payload
	// Recipient is the recipient's user name, or empty for an anonymous
	// transfer.
	Recipient string

	Ciphertext         []string
	ClientIV           string
	Signature          string
	SignerPublicKey    string
	AgreementPublicKey string
	ServerKey          string
	LifetimeHours      int
}

// Receipt is returned for an admitted transfer.
type Receipt struct {
	ID         uuid.UUID
	Expiration time.Time
}

// Preview is the metadata of a transfer, without ciphertext.
type Preview struct {
	ID                 uuid.UUID
	SenderID           *uuid.UUID
	RecipientID        *uuid.UUID
	Payload            Payload
	Size               int64
	AgreementPublicKey []byte
	Created            time.Time
	Expiration         time.Time
}

// Ciphertext is the sender-encrypted payload with what the recipient
// needs to decrypt it.
type Ciphertext struct {
	Ciphertext         []byte
	ClientIV           []byte
	AgreementPublicKey []byte
}

// Signature is the sender's signature over the plaintext.
type Signature struct {
	Signature       []byte
	SignerPublicKey []byte
}

// Summary is a line of a user's transfer listing.
type Summary struct {
	ID          uuid.UUID
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	Payload     Payload
	Size        int64
	Created     time.Time
	Expiration  time.Time
}

// Records persists envelopes and the storage usage counter. Missing
// records are reported with an error matching apierrors.ErrNotFound.
type Records interface {
	// Insert stores env and charges env.Size to the usage counter.
	Insert(env *Envelope) error
	// Get returns the envelope with the given id.
	Get(id uuid.UUID) (*Envelope, error)
	// Delete removes the envelope and releases its usage.
	Delete(id uuid.UUID) error
	// Usage returns the bytes currently charged.
	Usage() (int64, error)
	// Expired returns the ids of envelopes whose expiration is at or
	// before now.
	Expired(now time.Time) ([]uuid.UUID, error)
	// Sent returns the envelopes whose sender is user.
	Sent(user uuid.UUID) ([]*Envelope, error)
	// Received returns the envelopes addressed to user.
	Received(user uuid.UUID) ([]*Envelope, error)
}

// Blobs persists server-encrypted ciphertext. Missing blobs are
// reported with an error matching apierrors.ErrNotFound, and deleting
// a missing blob succeeds.
type Blobs interface {
	Put(id uuid.UUID, data []byte) error
	Get(id uuid.UUID) ([]byte, error)
	Delete(id uuid.UUID) error
}
