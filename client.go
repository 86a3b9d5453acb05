package crypter

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/api"
	"github.com/crypter-io/crypter-go/internal/crypto"
	"github.com/crypter-io/crypter-go/internal/envelope"
)

// Client sends and receives transfers through a Crypter server. It is
// safe for concurrent use.
type Client struct {
	apiClient *api.Client
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
		api.WithTimeout(cfg.timeout),
	}
	if cfg.retries > 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if cfg.userID != nil {
		apiOpts = append(apiOpts, api.WithUserID(*cfg.userID))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	return api.New(apiOpts...)
}

// New creates a new Crypter client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	apiClient, err := buildAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{apiClient: apiClient}, nil
}

// SendMessage encrypts, signs and uploads the message read from r.
func (c *Client) SendMessage(ctx context.Context, subject string, r io.Reader, opts ...SendOption) (*Receipt, error) {
	return c.send(ctx, KindMessage, r, opts, func(recipient string, base api.UploadRequestBase) (*api.UploadResponse, error) {
		return c.apiClient.UploadMessage(ctx, recipient, &api.UploadMessageRequest{
			UploadRequestBase: base,
			Subject:           subject,
		})
	})
}

// SendFile encrypts, signs and uploads the file read from r. An empty
// contentType is recorded by the server as application/unknown.
func (c *Client) SendFile(ctx context.Context, fileName, contentType string, r io.Reader, opts ...SendOption) (*Receipt, error) {
	return c.send(ctx, KindFile, r, opts, func(recipient string, base api.UploadRequestBase) (*api.UploadResponse, error) {
		return c.apiClient.UploadFile(ctx, recipient, &api.UploadFileRequest{
			UploadRequestBase: base,
			FileName:          fileName,
			ContentType:       contentType,
		})
	})
}

type uploadFunc func(recipient string, base api.UploadRequestBase) (*api.UploadResponse, error)

func (c *Client) send(ctx context.Context, kind Kind, r io.Reader, opts []SendOption, upload uploadFunc) (*Receipt, error) {
	cfg := &sendConfig{lifetimeHours: DefaultLifetimeHours}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.recipient != "" && cfg.recipientPublicKey == nil {
		return nil, ErrMissingRecipientKey
	}

	var shareKey []byte
	recipientKey := cfg.recipientPublicKey
	if recipientKey == nil {
		ephemeral, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		recipientKey = ephemeral.AgreementPublicPEM()
		shareKey = ephemeral.AgreementPrivatePEM()
		ephemeral.Wipe()
	}

	sender := cfg.sender
	if sender == nil {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		sender = &Keys{kp: kp}
		defer sender.Wipe()
	}

	env, err := envelope.Seal(ctx, r, envelope.SealKeys{
		Sender:             sender.kp,
		RecipientPublicKey: recipientKey,
	}, cfg.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("seal transfer: %w", err)
	}
	defer env.Wipe()

	chunks := make([]string, len(env.Chunks))
	for i, chunk := range env.Chunks {
		chunks[i] = crypto.ToBase64(chunk)
	}

	resp, err := upload(cfg.recipient, api.UploadRequestBase{
		Ciphertext:             chunks,
		ClientIV:               crypto.ToBase64(env.IV),
		DigitalSignature:       crypto.ToBase64(env.Signature),
		DigitalSignaturePubKey: string(env.SignerPublicKey),
		KeyAgreementPublicKey:  string(env.AgreementPublicKey),
		ServerEncryptionKey:    crypto.ToBase64(env.ServerKey),
		RequestedLifetimeHours: cfg.lifetimeHours,
	})
	if err != nil {
		return nil, err
	}

	return &Receipt{
		ID:         resp.ID,
		Kind:       kind,
		Expiration: resp.Expiration,
		ShareKey:   shareKey,
	}, nil
}

// Preview returns the metadata of a transfer without downloading it.
func (c *Client) Preview(ctx context.Context, kind Kind, id uuid.UUID) (*Preview, error) {
	resp, err := c.apiClient.Preview(ctx, string(kind), id)
	if err != nil {
		return nil, err
	}
	return &Preview{
		ID:          resp.ID,
		Kind:        Kind(resp.Kind),
		SenderID:    resp.SenderID,
		RecipientID: resp.RecipientID,
		Subject:     resp.Subject,
		FileName:    resp.FileName,
		ContentType: resp.ContentType,
		Size:        resp.Size,
		Created:     resp.Created,
		Expiration:  resp.Expiration,
	}, nil
}

// Received lists the unexpired transfers addressed to the client's user,
// newest first.
func (c *Client) Received(ctx context.Context) ([]Summary, error) {
	return c.transfers(ctx, api.DirectionReceived)
}

// Sent lists the unexpired transfers the client's user uploaded, newest
// first.
func (c *Client) Sent(ctx context.Context) ([]Summary, error) {
	return c.transfers(ctx, api.DirectionSent)
}

func (c *Client) transfers(ctx context.Context, direction string) ([]Summary, error) {
	if c.apiClient.UserID() == nil {
		return nil, ErrMissingUserID
	}
	resp, err := c.apiClient.Transfers(ctx, direction)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, len(resp.Transfers))
	for i, t := range resp.Transfers {
		summaries[i] = Summary{
			ID:          t.ID,
			Kind:        Kind(t.Kind),
			SenderID:    t.SenderID,
			RecipientID: t.RecipientID,
			Subject:     t.Subject,
			FileName:    t.FileName,
			Size:        t.Size,
			Created:     t.Created,
			Expiration:  t.Expiration,
		}
	}
	return summaries, nil
}

// Receive downloads a transfer and opens it with the recipient's
// PEM-encoded X25519 private key: either the recipient's long-term
// AgreementPrivateKey or the share key of an anonymous transfer.
func (c *Client) Receive(ctx context.Context, kind Kind, id uuid.UUID, privateKey []byte, opts ...ReceiveOption) (*Received, error) {
	cfg := &receiveConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ct, err := c.apiClient.Ciphertext(ctx, string(kind), id)
	if err != nil {
		return nil, err
	}
	sig, err := c.apiClient.Signature(ctx, string(kind), id)
	if err != nil {
		return nil, err
	}

	signerKey := []byte(sig.DigitalSignaturePubKey)
	if cfg.trustedSigner != nil && !samePEMKey(cfg.trustedSigner, signerKey) {
		return nil, &SignatureVerificationError{
			Message:       "transfer was signed by an untrusted key",
			IsKeyMismatch: true,
		}
	}

	sealed, err := decodeSealed(ct, sig)
	if err != nil {
		return nil, err
	}
	plaintext, err := envelope.Open(sealed, privateKey)
	if err != nil {
		return nil, err
	}
	return &Received{Plaintext: plaintext, SignerPublicKey: signerKey}, nil
}

func decodeSealed(ct *api.CiphertextResponse, sig *api.SignatureResponse) (*envelope.Sealed, error) {
	ciphertext, err := crypto.DecodeBase64Chunks(ct.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecryptionFailed, err)
	}
	iv, err := crypto.DecodeBase64(ct.ClientIV)
	if err != nil {
		return nil, fmt.Errorf("%w: IV: %v", ErrDecryptionFailed, err)
	}
	signature, err := crypto.DecodeBase64(sig.DigitalSignature)
	if err != nil {
		return nil, &SignatureVerificationError{Message: "malformed signature encoding"}
	}
	return &envelope.Sealed{
		Ciphertext:         ciphertext,
		IV:                 iv,
		Signature:          signature,
		SignerPublicKey:    []byte(sig.DigitalSignaturePubKey),
		AgreementPublicKey: []byte(ct.KeyAgreementPublicKey),
	}, nil
}

// samePEMKey compares two PEM-encoded Ed25519 public keys by their key
// bytes, ignoring encoding differences such as trailing whitespace.
func samePEMKey(a, b []byte) bool {
	ka, err := crypto.ParseSigningPublicKey(a)
	if err != nil {
		return false
	}
	kb, err := crypto.ParseSigningPublicKey(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ka, kb)
}
