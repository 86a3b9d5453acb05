package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation
	// for domain separation.
	HKDFContext = "crypter:transfer:v1"

	// SendKeyLabel is appended to HKDFContext when deriving the
	// end-to-end send key.
	SendKeyLabel = ":send"
	// ServerKeyLabel is appended to HKDFContext when deriving the
	// at-rest server key.
	ServerKeyLabel = ":server"

	// SignatureContext is the Ed25519ph context string bound into every
	// transfer signature.
	SignatureContext = "crypter:signature:v1"

	// X25519KeySize is the size of an X25519 private or public key in bytes.
	X25519KeySize = 32
	// Ed25519SeedSize is the size of an Ed25519 private key seed in bytes.
	Ed25519SeedSize = 32
	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes.
	Ed25519PublicKeySize = 32
	// Ed25519SignatureSize is the size of an Ed25519ph signature in bytes.
	Ed25519SignatureSize = 64

	// SendKeySize is the size of the AES-128 end-to-end key in bytes.
	SendKeySize = 16
	// ServerKeySize is the size of the AES-256 at-rest key in bytes.
	ServerKeySize = 32
	// BlockSize is the AES block size, which is also the IV size.
	BlockSize = 16

	// DigestSize is the size of a SHA-256 server digest in bytes.
	DigestSize = 32

	// DefaultChunkSize is the plaintext chunk size used when streaming a
	// payload. It is a multiple of both BlockSize and 3, so every
	// interior ciphertext chunk base64-encodes without padding.
	DefaultChunkSize = 60000
)

// AlgsCiphersuite is the canonical string representation of the algorithm suite.
var AlgsCiphersuite = "X25519:Ed25519ph:AES-128-CBC:AES-256-CBC:HKDF-SHA-512"
