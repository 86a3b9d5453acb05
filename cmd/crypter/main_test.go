package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
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
			{ID: bobID, Name: "bob"},
		}),
		AllocatedBytes: 1 << 20,
		Logger:         backend.GetLogger("transfer"),
	})
	if err != nil {
		t.Fatalf("transfer.New() error = %v", err)
	}

	ts := httptest.NewServer(httpapi.New(&httpapi.Config{Service: svc}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes the CLI with stdin and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// field extracts "name: value" from receipt or preview output.
func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q in output:\n%s", name, out)
	return ""
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "alice.json")

	if _, err := run(t, "", "keygen", "--out", keyFile); err != nil {
		t.Fatalf("keygen error = %v", err)
	}
	for _, name := range []string{"alice.json", "alice.agreement.pem", "alice.signing.pem"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := loadKeys(keyFile); err != nil {
		t.Errorf("loadKeys() error = %v", err)
	}

	if _, err := run(t, "", "keygen", "--out", keyFile); err == nil {
		t.Error("keygen should refuse to overwrite an existing key file")
	}
}

func TestAnonymousMessage(t *testing.T) {
	server := startServer(t)
	dir := t.TempDir()

	out, err := run(t, "the quick brown fox", "send", "message", "--subject", "fox", "--server", server)
	if err != nil {
		t.Fatalf("send error = %v\n%s", err, out)
	}
	id := field(t, out, "id")

	idx := strings.Index(out, "-----BEGIN")
	if idx < 0 {
		t.Fatalf("no share key in output:\n%s", out)
	}
	shareKey := filepath.Join(dir, "share.pem")
	if err := os.WriteFile(shareKey, []byte(out[idx:]), 0o600); err != nil {
		t.Fatal(err)
	}

	preview, err := run(t, "", "preview", "message", id, "--server", server)
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}
	if got := field(t, preview, "subject"); got != "fox" {
		t.Errorf("subject = %q, want fox", got)
	}

	got, err := run(t, "", "receive", "message", id, "--share-key", shareKey, "--server", server)
	if err != nil {
		t.Fatalf("receive error = %v", err)
	}
	if got != "the quick brown fox" {
		t.Errorf("received %q", got)
	}
}

func TestNamedFile(t *testing.T) {
	server := startServer(t)
	dir := t.TempDir()

	for _, who := range []string{"alice", "bob"} {
		if _, err := run(t, "", "keygen", "--out", filepath.Join(dir, who+".json")); err != nil {
			t.Fatalf("keygen %s error = %v", who, err)
		}
	}

	payload := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(payload, []byte("meeting at noon"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "send", "file", payload,
		"--server", server,
		"--user", bobID.String(),
		"--to", "alice",
		"--to-key", filepath.Join(dir, "alice.agreement.pem"),
		"--keys", filepath.Join(dir, "bob.json"),
		"--lifetime", "3",
	)
	if err != nil {
		t.Fatalf("send error = %v\n%s", err, out)
	}
	if strings.Contains(out, "share key") {
		t.Error("named transfer printed a share key")
	}
	id := field(t, out, "id")

	preview, err := run(t, "", "preview", "file", id, "--server", server, "--user", aliceID.String())
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}
	if got := field(t, preview, "file name"); got != "notes.txt" {
		t.Errorf("file name = %q", got)
	}
	if got := field(t, preview, "type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("type = %q, want text/plain", got)
	}

	inbox, err := run(t, "", "list", "received", "--server", server, "--user", aliceID.String())
	if err != nil {
		t.Fatalf("list received error = %v", err)
	}
	if !strings.Contains(inbox, id) || !strings.Contains(inbox, "notes.txt") {
		t.Errorf("list received = %q, want %s notes.txt", inbox, id)
	}
	outbox, err := run(t, "", "list", "sent", "--server", server, "--user", bobID.String())
	if err != nil {
		t.Fatalf("list sent error = %v", err)
	}
	if !strings.Contains(outbox, id) {
		t.Errorf("list sent = %q, want %s", outbox, id)
	}

	dest := filepath.Join(dir, "out.txt")
	_, err = run(t, "", "receive", "file", id,
		"--server", server,
		"--user", aliceID.String(),
		"--keys", filepath.Join(dir, "alice.json"),
		"--signer", filepath.Join(dir, "bob.signing.pem"),
		"--out", dest,
	)
	if err != nil {
		t.Fatalf("receive error = %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "meeting at noon" {
		t.Errorf("received %q, %v", got, err)
	}

	// Pinning the wrong signer fails.
	_, err = run(t, "", "receive", "file", id,
		"--server", server,
		"--user", aliceID.String(),
		"--keys", filepath.Join(dir, "alice.json"),
		"--signer", filepath.Join(dir, "alice.signing.pem"),
	)
	if err == nil {
		t.Error("receive with the wrong signer should fail")
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad kind", []string{"preview", "photo", uuid.NewString()}},
		{"bad id", []string{"preview", "file", "nope"}},
		{"bad user", []string{"preview", "file", uuid.NewString(), "--user", "nobody"}},
		{"no key", []string{"receive", "file", uuid.NewString()}},
		{"both keys", []string{"receive", "file", uuid.NewString(), "--keys", "a", "--share-key", "b"}},
		{"named without key", []string{"send", "message", "--to", "alice", "--server", "http://127.0.0.1:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "x", tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()

	if err := loadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("loadEnv() on missing file error = %v", err)
	}

	const key = "CRYPTER_DOTENV_PROBE"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(key+"=http://crypter.test:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv() error = %v", err)
	}
	if got := os.Getenv(key); got != "http://crypter.test:9000" {
		t.Errorf("%s = %q", key, got)
	}
}
