package crypter

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLifetimeHours is the lifetime requested when none is set.
	DefaultLifetimeHours = 24

	defaultTimeout = 60 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	userID     *uuid.UUID
}

// sendConfig holds configuration for a single transfer.
type sendConfig struct {
	recipient          string
	recipientPublicKey []byte
	sender             *Keys
	lifetimeHours      int
	chunkSize          int
}

// receiveConfig holds configuration for opening a transfer.
type receiveConfig struct {
	trustedSigner []byte
}

// Option configures the client.
type Option func(*clientConfig)

// SendOption configures a transfer.
type SendOption func(*sendConfig)

// ReceiveOption configures how a transfer is opened.
type ReceiveOption func(*receiveConfig)

// WithBaseURL sets the server URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for API calls.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithUserID identifies the client as the given user. Without it the
// client is anonymous: it can send, and receive only transfers that
// were sent without a recipient.
func WithUserID(id uuid.UUID) Option {
	return func(c *clientConfig) {
		c.userID = &id
	}
}

// WithRecipient addresses the transfer to a named user. The recipient's
// public key must also be given with WithRecipientPublicKey.
func WithRecipient(name string) SendOption {
	return func(c *sendConfig) {
		c.recipient = name
	}
}

// WithRecipientPublicKey sets the recipient's PEM-encoded X25519 public
// key. Without it an ephemeral recipient key pair is generated and its
// private key is returned as the receipt's share key.
func WithRecipientPublicKey(pem []byte) SendOption {
	return func(c *sendConfig) {
		c.recipientPublicKey = pem
	}
}

// WithSenderKeys signs and encrypts with long-term sender keys instead
// of an ephemeral pair.
func WithSenderKeys(keys *Keys) SendOption {
	return func(c *sendConfig) {
		c.sender = keys
	}
}

// WithLifetimeHours sets how long the server keeps the transfer.
// Default: 24
func WithLifetimeHours(hours int) SendOption {
	return func(c *sendConfig) {
		c.lifetimeHours = hours
	}
}

// WithChunkSize sets the plaintext chunk size used while sealing.
// Default: 60000 bytes
func WithChunkSize(size int) SendOption {
	return func(c *sendConfig) {
		c.chunkSize = size
	}
}

// WithTrustedSigner requires the transfer to be signed by the given
// PEM-encoded Ed25519 public key.
func WithTrustedSigner(pem []byte) ReceiveOption {
	return func(c *receiveConfig) {
		c.trustedSigner = pem
	}
}
