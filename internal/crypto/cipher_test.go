package crypto

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"
)

var (
	knownKey = []byte{
		0x41, 0x73, 0xc0, 0xd2, 0xe7, 0x1a, 0xe5, 0x4f,
		0xe1, 0x90, 0x83, 0x8f, 0x2e, 0x5a, 0xc7, 0xfc,
	}
	knownIV = []byte{
		0x5e, 0xdd, 0xed, 0x1a, 0x92, 0xa4, 0x89, 0x31,
		0x81, 0xb6, 0xa3, 0x47, 0xf6, 0xed, 0x8a, 0x6a,
	}
	knownPlaintext = []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	}
	knownCiphertext = []byte{
		0x38, 0x1c, 0xda, 0x9d, 0x68, 0xe7, 0xbf, 0x4b,
		0x96, 0x13, 0x3f, 0xc8, 0x35, 0xbb, 0x52, 0x35,
		0x33, 0x4a, 0x81, 0x02, 0xdc, 0x7d, 0x61, 0x2d,
		0x2e, 0x5b, 0x9f, 0xfb, 0x52, 0xfc, 0x35, 0xc9,
	}
	knownStringCiphertext = []byte{
		0x5e, 0x72, 0xb7, 0x93, 0x61, 0xef, 0xb4, 0x41,
		0x93, 0x17, 0x38, 0xce, 0x34, 0xbb, 0x51, 0x37,
	}
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestEncrypt_KnownAnswer(t *testing.T) {
	got, err := Encrypt(SendCipher, knownKey, knownIV, knownPlaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.Equal(got, knownCiphertext) {
		t.Errorf("Encrypt() = %x, want %x", got, knownCiphertext)
	}

	got, err = Encrypt(SendCipher, knownKey, knownIV, []byte("foo"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.Equal(got, knownStringCiphertext) {
		t.Errorf("Encrypt(foo) = %x, want %x", got, knownStringCiphertext)
	}
}

func TestDecrypt_KnownAnswer(t *testing.T) {
	got, err := Decrypt(SendCipher, knownKey, knownIV, knownCiphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, knownPlaintext) {
		t.Errorf("Decrypt() = %x, want %x", got, knownPlaintext)
	}

	got, err = Decrypt(SendCipher, knownKey, knownIV, knownStringCiphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(got) != "foo" {
		t.Errorf("Decrypt() = %q, want %q", got, "foo")
	}
}

func TestEncrypt_DecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"one block", make([]byte, BlockSize)},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", make([]byte, 10000)},
	}

	for _, suite := range []Suite{SendCipher, ServerCipher} {
		for _, tt := range tests {
			t.Run(suite.Name+"/"+tt.name, func(t *testing.T) {
				key := randomBytes(t, suite.KeySize)

				ciphertext, iv, err := EncryptWithRandomIV(suite, key, tt.plaintext)
				if err != nil {
					t.Fatalf("EncryptWithRandomIV() error = %v", err)
				}

				expectedLen := (len(tt.plaintext)/BlockSize + 1) * BlockSize
				if len(ciphertext) != expectedLen {
					t.Errorf("ciphertext length = %d, want %d", len(ciphertext), expectedLen)
				}

				decrypted, err := Decrypt(suite, key, iv, ciphertext)
				if err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(decrypted, tt.plaintext) {
					t.Errorf("decrypted = %x, want %x", decrypted, tt.plaintext)
				}
			})
		}
	}
}

func TestStreamCipher_ChunkedMatchesWhole(t *testing.T) {
	key := randomBytes(t, SendKeySize)
	iv := randomBytes(t, BlockSize)

	sizes := []int{0, 1, 15, 16, 17, 100, 4096, 60000, 123457}
	chunkSizes := []int{1, 7, 16, 33, 1000, 60000}

	for _, size := range sizes {
		payload := randomBytes(t, size)
		whole, err := Encrypt(SendCipher, key, iv, payload)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}

		for _, chunkSize := range chunkSizes {
			t.Run(fmt.Sprintf("size=%d/chunk=%d", size, chunkSize), func(t *testing.T) {
				var chunked []byte
				err := EncryptChunked(context.Background(), SendCipher, key, iv, bytes.NewReader(payload), chunkSize, func(b []byte) error {
					chunked = append(chunked, b...)
					return nil
				})
				if err != nil {
					t.Fatalf("EncryptChunked() error = %v", err)
				}
				if !bytes.Equal(chunked, whole) {
					t.Fatal("chunked ciphertext differs from whole-buffer ciphertext")
				}

				decrypted, err := Decrypt(SendCipher, key, iv, chunked)
				if err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(decrypted, payload) {
					t.Error("decrypted payload differs from original")
				}
			})
		}
	}
}

func TestStreamCipher_ProcessChunkBlockAligned(t *testing.T) {
	key := randomBytes(t, SendKeySize)
	iv := randomBytes(t, BlockSize)

	enc, err := NewStreamCipher(SendCipher, key, iv, true)
	if err != nil {
		t.Fatalf("NewStreamCipher() error = %v", err)
	}

	chunk := randomBytes(t, 4*BlockSize)
	out, err := enc.ProcessChunk(chunk)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v", err)
	}
	if len(out) != len(chunk) {
		t.Errorf("ProcessChunk() output length = %d, want %d", len(out), len(chunk))
	}
}

func TestStreamCipher_ChunkedDecrypt(t *testing.T) {
	key := randomBytes(t, ServerKeySize)
	iv := randomBytes(t, BlockSize)
	payload := randomBytes(t, 1000)

	ciphertext, err := Encrypt(ServerCipher, key, iv, payload)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	dec, err := NewStreamCipher(ServerCipher, key, iv, false)
	if err != nil {
		t.Fatalf("NewStreamCipher() error = %v", err)
	}

	var plaintext []byte
	for off := 0; off < len(ciphertext); off += 48 {
		end := min(off+48, len(ciphertext))
		var out []byte
		if end == len(ciphertext) {
			out, err = dec.ProcessFinal(ciphertext[off:end])
		} else {
			out, err = dec.ProcessChunk(ciphertext[off:end])
		}
		if err != nil {
			t.Fatalf("decrypt chunk at %d: %v", off, err)
		}
		plaintext = append(plaintext, out...)
	}

	if !bytes.Equal(plaintext, payload) {
		t.Error("chunked decryption differs from original")
	}
}

func TestNewStreamCipher_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		suite   Suite
		keySize int
	}{
		{"send empty", SendCipher, 0},
		{"send server-sized key", SendCipher, ServerKeySize},
		{"server send-sized key", ServerCipher, SendKeySize},
		{"server too long", ServerCipher, 64},
	}

	iv := make([]byte, BlockSize)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStreamCipher(tt.suite, make([]byte, tt.keySize), iv, true)
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestNewStreamCipher_InvalidIVSize(t *testing.T) {
	for _, ivSize := range []int{0, 8, 12, 32} {
		t.Run(fmt.Sprintf("iv=%d", ivSize), func(t *testing.T) {
			_, err := NewStreamCipher(SendCipher, make([]byte, SendKeySize), make([]byte, ivSize), true)
			if !errors.Is(err, ErrInvalidIVSize) {
				t.Errorf("expected ErrInvalidIVSize, got %v", err)
			}
		})
	}
}

func TestDecrypt_InvalidCiphertextSize(t *testing.T) {
	key := make([]byte, SendKeySize)
	iv := make([]byte, BlockSize)

	for _, n := range []int{0, 1, 15, 17} {
		_, err := Decrypt(SendCipher, key, iv, make([]byte, n))
		if !errors.Is(err, ErrInvalidCiphertextSize) {
			t.Errorf("len %d: expected ErrInvalidCiphertextSize, got %v", n, err)
		}
	}
}

func TestDecrypt_WrongKeyFailsPadding(t *testing.T) {
	// A wrong key produces garbage padding with overwhelming probability;
	// iterate so a lucky 0x01 trailer cannot make the test flaky.
	payload := []byte("the quick brown fox")
	failures := 0
	for i := 0; i < 16; i++ {
		key := randomBytes(t, SendKeySize)
		ciphertext, iv, err := EncryptWithRandomIV(SendCipher, key, payload)
		if err != nil {
			t.Fatal(err)
		}
		plaintext, err := Decrypt(SendCipher, randomBytes(t, SendKeySize), iv, ciphertext)
		if errors.Is(err, ErrInvalidPadding) || (err == nil && !bytes.Equal(plaintext, payload)) {
			failures++
		}
	}
	if failures != 16 {
		t.Errorf("wrong key decrypted the payload %d times", 16-failures)
	}
}

func TestStreamCipher_Finalized(t *testing.T) {
	enc, err := NewStreamCipher(SendCipher, make([]byte, SendKeySize), make([]byte, BlockSize), true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.ProcessFinal([]byte("done")); err != nil {
		t.Fatalf("ProcessFinal() error = %v", err)
	}

	if _, err := enc.ProcessChunk([]byte("more")); !errors.Is(err, ErrCipherFinalized) {
		t.Errorf("ProcessChunk() after final: expected ErrCipherFinalized, got %v", err)
	}
	if _, err := enc.ProcessFinal(nil); !errors.Is(err, ErrCipherFinalized) {
		t.Errorf("ProcessFinal() after final: expected ErrCipherFinalized, got %v", err)
	}
}

func TestEncryptChunked_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	payload := make([]byte, 10*BlockSize)
	calls := 0
	err := EncryptChunked(ctx, SendCipher, make([]byte, SendKeySize), make([]byte, BlockSize), bytes.NewReader(payload), BlockSize, func([]byte) error {
		calls++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("emit called %d times, want 1", calls)
	}
}

func TestEncryptChunked_InvalidChunkSize(t *testing.T) {
	err := EncryptChunked(context.Background(), SendCipher, make([]byte, SendKeySize), make([]byte, BlockSize), bytes.NewReader(nil), 0, func([]byte) error { return nil })
	if !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("expected ErrInvalidChunkSize, got %v", err)
	}
}

func TestChunkReader(t *testing.T) {
	tests := []struct {
		size  int
		chunk int
		want  []int
	}{
		{0, 4, []int{0}},
		{3, 4, []int{3}},
		{4, 4, []int{4}},
		{5, 4, []int{4, 1}},
		{8, 4, []int{4, 4}},
		{9, 4, []int{4, 4, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.size, tt.chunk), func(t *testing.T) {
			r := NewChunkReader(bytes.NewReader(make([]byte, tt.size)), tt.chunk)
			var got []int
			for {
				chunk, last, err := r.Next()
				if err != nil {
					t.Fatalf("Next() error = %v", err)
				}
				got = append(got, len(chunk))
				if last {
					break
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("chunk lengths = %v, want %v", got, tt.want)
			}
		})
	}
}
