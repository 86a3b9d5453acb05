package crypter

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/httpapi"
	"github.com/crypter-io/crypter-go/internal/log"
	"github.com/crypter-io/crypter-go/internal/store"
	"github.com/crypter-io/crypter-go/internal/transfer"
)

var (
	aliceID = uuid.MustParse("6f1c2b7e-1d0a-4d7c-9d3c-7a2b9a6b1f01")
	bobID   = uuid.MustParse("0b9a3c51-6c7e-4f2d-8f6b-0c2d4e6f8a10")
)

// startServer runs the full server stack on a temporary data directory.
func startServer(t *testing.T) string {
	t.Helper()

	backend, err := log.New("", "ERROR", true)
	if err != nil {
		t.Fatalf("log.New() error = %v", err)
	}
	dataDir := t.TempDir()
	records, err := store.OpenRecords(dataDir)
	if err != nil {
		t.Fatalf("OpenRecords() error = %v", err)
	}
	t.Cleanup(func() { records.Close() })
	blobs, err := store.OpenBlobs(dataDir)
	if err != nil {
		t.Fatalf("OpenBlobs() error = %v", err)
	}

	svc, err := transfer.New(&transfer.Config{
		Records: records,
		Blobs:   blobs,
		Directory: transfer.NewStaticDirectory([]transfer.Recipient{
			{ID: aliceID, Name: "alice"},
			{ID: bobID, Name: "bob", Policy: transfer.Policy{RefuseAnonymous: true}},
		}),
		AllocatedBytes: 8 << 20,
		Logger:         backend.GetLogger("transfer"),
	})
	if err != nil {
		t.Fatalf("transfer.New() error = %v", err)
	}

	ts := httptest.NewServer(httpapi.New(&httpapi.Config{
		Service: svc,
		Logger:  backend.GetLogger("httpapi"),
	}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithBaseURL(url), WithRetries(1)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New()
	if !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("New() error = %v, want ErrMissingBaseURL", err)
	}
}

func TestClient_AnonymousMessage(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	c := newTestClient(t, url)

	receipt, err := c.SendMessage(ctx, "hello", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if receipt.ShareKey == nil {
		t.Fatal("anonymous transfer has no share key")
	}
	if receipt.Kind != KindMessage {
		t.Errorf("Kind = %q, want %q", receipt.Kind, KindMessage)
	}

	// Any client holding the id and share key can open it.
	other := newTestClient(t, url)
	received, err := other.Receive(ctx, KindMessage, receipt.ID, receipt.ShareKey)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(received.Plaintext) != "hello" {
		t.Errorf("Plaintext = %q, want %q", received.Plaintext, "hello")
	}

	preview, err := other.Preview(ctx, KindMessage, receipt.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Subject != "hello" || preview.SenderID != nil || preview.RecipientID != nil {
		t.Errorf("Preview() = %+v", preview)
	}
	if !preview.Expiration.Equal(receipt.Expiration) {
		t.Errorf("Expiration = %v, want %v", preview.Expiration, receipt.Expiration)
	}
}

func TestClient_NamedFile(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	aliceKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	bobKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	plaintext := bytes.Repeat([]byte("0123456789abcdef"), 20000)
	bob := newTestClient(t, url, WithUserID(bobID))
	receipt, err := bob.SendFile(ctx, "data.bin", "application/octet-stream", bytes.NewReader(plaintext),
		WithRecipient("alice"),
		WithRecipientPublicKey(aliceKeys.AgreementPublicKey()),
		WithSenderKeys(bobKeys),
		WithLifetimeHours(2),
		WithChunkSize(4096),
	)
	if err != nil {
		t.Fatalf("SendFile() error = %v", err)
	}
	if receipt.ShareKey != nil {
		t.Error("named transfer should not carry a share key")
	}

	alice := newTestClient(t, url, WithUserID(aliceID))
	preview, err := alice.Preview(ctx, KindFile, receipt.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.FileName != "data.bin" || preview.ContentType != "application/octet-stream" {
		t.Errorf("Preview() = %+v", preview)
	}
	if *preview.SenderID != bobID || *preview.RecipientID != aliceID {
		t.Errorf("Preview() parties = %v -> %v", preview.SenderID, preview.RecipientID)
	}
	if got := preview.Expiration.Sub(preview.Created).Hours(); got != 2 {
		t.Errorf("lifetime = %v hours, want 2", got)
	}

	received, err := alice.Receive(ctx, KindFile, receipt.ID, aliceKeys.AgreementPrivateKey(),
		WithTrustedSigner(bobKeys.SigningPublicKey()))
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(received.Plaintext, plaintext) {
		t.Error("received plaintext does not match")
	}
	if !bytes.Equal(received.SignerPublicKey, bobKeys.SigningPublicKey()) {
		t.Error("SignerPublicKey does not match sender")
	}

	// Not visible to anyone but alice.
	_, err = bob.Receive(ctx, KindFile, receipt.ID, aliceKeys.AgreementPrivateKey())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Receive() by sender error = %v, want ErrNotFound", err)
	}
	_, err = newTestClient(t, url).Preview(ctx, KindFile, receipt.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("anonymous Preview() error = %v, want ErrNotFound", err)
	}
}

func TestClient_Receive_UntrustedSigner(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	c := newTestClient(t, url)

	receipt, err := c.SendMessage(ctx, "s", strings.NewReader("signed by someone"))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	pinned, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	_, err = c.Receive(ctx, KindMessage, receipt.ID, receipt.ShareKey, WithTrustedSigner(pinned.SigningPublicKey()))
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("Receive() error = %v, want ErrSignatureInvalid", err)
	}
	var sigErr *SignatureVerificationError
	if !errors.As(err, &sigErr) || !sigErr.IsKeyMismatch {
		t.Errorf("Receive() error = %#v, want key mismatch", err)
	}
}

func TestClient_Receive_WrongKey(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	c := newTestClient(t, url)

	receipt, err := c.SendMessage(ctx, "s", strings.NewReader("for someone else"))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	stranger, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	_, err = c.Receive(ctx, KindMessage, receipt.ID, stranger.AgreementPrivateKey())
	if !errors.Is(err, ErrDecryptionFailed) && !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Receive() error = %v, want decryption or signature failure", err)
	}
}

func TestClient_SendErrors(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	c := newTestClient(t, url)

	keys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	tests := []struct {
		name    string
		opts    []SendOption
		wantErr error
	}{
		{"named without key", []SendOption{WithRecipient("alice")}, ErrMissingRecipientKey},
		{"unknown recipient", []SendOption{WithRecipient("mallory"), WithRecipientPublicKey(keys.AgreementPublicKey())}, ErrRecipientNotFound},
		{"anonymous to bob", []SendOption{WithRecipient("bob"), WithRecipientPublicKey(keys.AgreementPublicKey())}, ErrBlockedByRecipientPrivacy},
		{"lifetime 0", []SendOption{WithLifetimeHours(0)}, ErrInvalidRequestedLifetimeHours},
		{"lifetime 25", []SendOption{WithLifetimeHours(25)}, ErrInvalidRequestedLifetimeHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SendMessage(ctx, "subject", strings.NewReader("payload"), tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_OutOfSpace(t *testing.T) {
	url := startServer(t)
	c := newTestClient(t, url)

	_, err := c.SendFile(context.Background(), "big", "", bytes.NewReader(make([]byte, 9<<20)))
	if !errors.Is(err, ErrOutOfSpace) {
		t.Errorf("SendFile() error = %v, want ErrOutOfSpace", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != ErrorCode("OutOfSpace") {
		t.Errorf("SendFile() error = %#v, want OutOfSpace APIError", err)
	}
}

func TestClient_Receive_NotFound(t *testing.T) {
	url := startServer(t)
	c := newTestClient(t, url)

	_, err := c.Receive(context.Background(), KindMessage, uuid.New(), []byte("unused"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Receive() error = %v, want ErrNotFound", err)
	}
}

func TestClient_SentReceived(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	aliceKeys, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	bob := newTestClient(t, url, WithUserID(bobID))
	var ids []uuid.UUID
	for _, subject := range []string{"first", "second"} {
		receipt, err := bob.SendMessage(ctx, subject, strings.NewReader(subject),
			WithRecipient("alice"),
			WithRecipientPublicKey(aliceKeys.AgreementPublicKey()))
		if err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		ids = append(ids, receipt.ID)
	}

	alice := newTestClient(t, url, WithUserID(aliceID))
	received, err := alice.Received(ctx)
	if err != nil {
		t.Fatalf("Received() error = %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("Received() returned %d transfers, want 2", len(received))
	}
	got := map[uuid.UUID]Summary{}
	for _, s := range received {
		got[s.ID] = s
	}
	for i, subject := range []string{"first", "second"} {
		s, ok := got[ids[i]]
		if !ok {
			t.Fatalf("Received() is missing %v", ids[i])
		}
		if s.Subject != subject || s.Kind != KindMessage || *s.SenderID != bobID {
			t.Errorf("Received()[%v] = %+v", ids[i], s)
		}
	}

	sent, err := bob.Sent(ctx)
	if err != nil {
		t.Fatalf("Sent() error = %v", err)
	}
	if len(sent) != 2 {
		t.Errorf("Sent() returned %d transfers, want 2", len(sent))
	}

	aliceSent, err := alice.Sent(ctx)
	if err != nil {
		t.Fatalf("Sent() error = %v", err)
	}
	if len(aliceSent) != 0 {
		t.Errorf("Sent() for alice = %+v, want none", aliceSent)
	}

	if _, err := newTestClient(t, url).Received(ctx); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("Received() without user error = %v, want ErrMissingUserID", err)
	}
}
