package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// Suite describes one AES-CBC/PKCS#7 encryption layer. The end-to-end
// layer and the server's at-rest layer use different suites so the two
// keys can never be swapped for one another.
type Suite struct {
	// Name is the canonical name of the suite.
	Name string
	// KeySize is the exact key length the suite accepts, in bytes.
	KeySize int
}

var (
	// SendCipher is the end-to-end layer applied by the sender.
	SendCipher = Suite{Name: "AES-128-CBC-PKCS7", KeySize: SendKeySize}
	// ServerCipher is the at-rest layer applied by the server.
	ServerCipher = Suite{Name: "AES-256-CBC-PKCS7", KeySize: ServerKeySize}
)

// StreamCipher is a CBC cipher context that can be fed a payload in
// pieces. The chaining value and any partial block are carried between
// calls, so a payload processed through any sequence of ProcessChunk
// calls followed by ProcessFinal yields exactly the bytes of a single
// ProcessFinal over the whole payload.
//
// A StreamCipher is owned by a single operation and is not safe for
// concurrent use.
type StreamCipher struct {
	mode    cipher.BlockMode
	encrypt bool
	pending []byte
	done    bool
}

// NewStreamCipher initializes a cipher context for the given suite.
func NewStreamCipher(suite Suite, key, iv []byte, forEncryption bool) (*StreamCipher, error) {
	if len(key) != suite.KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), suite.KeySize)
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	s := &StreamCipher{encrypt: forEncryption}
	if forEncryption {
		s.mode = cipher.NewCBCEncrypter(block, iv)
	} else {
		s.mode = cipher.NewCBCDecrypter(block, iv)
	}
	return s, nil
}

// ProcessChunk processes an interior chunk without applying padding.
// Complete blocks are emitted immediately and a trailing partial block
// is held until the next call. When decrypting, the last complete block
// is always held back so its padding can be checked by ProcessFinal.
func (s *StreamCipher) ProcessChunk(p []byte) ([]byte, error) {
	if s.done {
		return nil, ErrCipherFinalized
	}

	buf := append(s.pending, p...)
	n := len(buf) - len(buf)%BlockSize
	if !s.encrypt && n > 0 && n == len(buf) {
		n -= BlockSize
	}

	out := make([]byte, n)
	if n > 0 {
		s.mode.CryptBlocks(out, buf[:n])
	}

	rest := make([]byte, len(buf)-n)
	copy(rest, buf[n:])
	memguard.WipeBytes(buf)
	s.pending = rest

	return out, nil
}

// ProcessFinal processes the last chunk. Encryption appends PKCS#7
// padding; decryption requires whole blocks and strips the padding.
// The context is wiped afterwards and cannot be reused.
func (s *StreamCipher) ProcessFinal(p []byte) ([]byte, error) {
	if s.done {
		return nil, ErrCipherFinalized
	}
	defer s.Wipe()

	buf := append(s.pending, p...)
	defer memguard.WipeBytes(buf)

	if s.encrypt {
		padded := pkcs7Pad(buf)
		defer memguard.WipeBytes(padded)

		out := make([]byte, len(padded))
		s.mode.CryptBlocks(out, padded)
		return out, nil
	}

	if len(buf) == 0 || len(buf)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCiphertextSize, len(buf))
	}

	out := make([]byte, len(buf))
	s.mode.CryptBlocks(out, buf)

	plaintext, err := pkcs7Unpad(out)
	if err != nil {
		memguard.WipeBytes(out)
		return nil, err
	}
	return plaintext, nil
}

// Wipe destroys the cipher state. It is safe to call more than once.
func (s *StreamCipher) Wipe() {
	if s.pending != nil {
		memguard.WipeBytes(s.pending)
	}
	s.pending = nil
	s.mode = nil
	s.done = true
}

func pkcs7Pad(b []byte) []byte {
	padLen := BlockSize - len(b)%BlockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > BlockSize {
		return nil, ErrInvalidPadding
	}

	good := 1
	for i := len(b) - padLen; i < len(b); i++ {
		good &= subtle.ConstantTimeByteEq(b[i], byte(padLen))
	}
	if good != 1 {
		return nil, ErrInvalidPadding
	}

	return b[:len(b)-padLen], nil
}

// GenerateIV returns a fresh random IV of one block.
func GenerateIV() ([]byte, error) {
	iv := make([]byte, BlockSize)
	if _, err := io.ReadFull(randSource(), iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// Encrypt encrypts plaintext in a single ProcessFinal call.
func Encrypt(suite Suite, key, iv, plaintext []byte) ([]byte, error) {
	enc, err := NewStreamCipher(suite, key, iv, true)
	if err != nil {
		return nil, err
	}
	return enc.ProcessFinal(plaintext)
}

// EncryptWithRandomIV encrypts plaintext under a freshly generated IV and
// returns the ciphertext together with that IV.
func EncryptWithRandomIV(suite Suite, key, plaintext []byte) (ciphertext, iv []byte, err error) {
	iv, err = GenerateIV()
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = Encrypt(suite, key, iv, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, iv, nil
}

// Decrypt reverses Encrypt (or any chunked encryption of the same
// payload) in a single ProcessFinal call.
func Decrypt(suite Suite, key, iv, ciphertext []byte) ([]byte, error) {
	dec, err := NewStreamCipher(suite, key, iv, false)
	if err != nil {
		return nil, err
	}
	return dec.ProcessFinal(ciphertext)
}

// EncryptChunked streams r through a fresh cipher context in chunks of
// chunkSize plaintext bytes and hands every non-empty ciphertext piece
// to emit, in order. The concatenation of the emitted pieces equals
// Encrypt over the whole of r. ctx is checked between chunks.
func EncryptChunked(ctx context.Context, suite Suite, key, iv []byte, r io.Reader, chunkSize int, emit func([]byte) error) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	enc, err := NewStreamCipher(suite, key, iv, true)
	if err != nil {
		return err
	}
	defer enc.Wipe()

	chunks := NewChunkReader(r, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, last, err := chunks.Next()
		if err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}

		var out []byte
		if last {
			out, err = enc.ProcessFinal(chunk)
		} else {
			out, err = enc.ProcessChunk(chunk)
		}
		if err != nil {
			return err
		}

		if len(out) > 0 || last {
			if err := emit(out); err != nil {
				return err
			}
		}
		if last {
			return nil
		}
	}
}
