// Package crypto provides the cryptographic primitives of the Crypter
// transfer envelope.
//
// # Algorithm Suite
//
//   - X25519: key agreement between sender and recipient. A transfer
//     without a sender identity uses a freshly generated pair.
//
//   - HKDF-SHA-512 (RFC 5869): expands the shared secret into two keys
//     with distinct labels, a 16-byte send key and a 32-byte server key.
//
//   - AES-128-CBC with PKCS#7 padding ([SendCipher]): end-to-end payload
//     encryption under the send key.
//
//   - AES-256-CBC with PKCS#7 padding ([ServerCipher]): the server's
//     at-rest layer under the server key.
//
//   - Ed25519ph (RFC 8032): signs the plaintext through a running SHA-512
//     digest so the payload can be absorbed in chunks.
//
// # Streaming
//
// [StreamCipher] accepts input in chunks of any size and produces the
// same ciphertext as a single whole-buffer call. [Signer] and
// [Verifier] likewise do not depend on how the payload was split.
//
// CBC provides no integrity of its own. Recipients must check the
// signature over the decrypted plaintext before trusting it.
//
// # Key Encoding
//
// Keys travel as PEM blocks carrying the raw key bytes, see
// [EncodePEM] and [DecodePEM]. Envelope fields on the wire use standard
// base64 via [ToBase64] and [DecodeBase64].
package crypto
