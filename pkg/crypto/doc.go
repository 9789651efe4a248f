// Package crypto provides the cryptographic primitives used by pairing and
// by the encrypted transport: HKDF-SHA512 key derivation, ChaCha20-Poly1305
// with 8-byte nonces, X25519 key agreement and Ed25519 signing helpers.
package crypto
