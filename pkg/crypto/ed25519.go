package crypto

import (
	"crypto/ed25519"
	"errors"
	"io"
)

// Ed25519 sizes.
const (
	Ed25519SeedSize      = ed25519.SeedSize
	Ed25519PublicKeySize = ed25519.PublicKeySize
	Ed25519SignatureSize = ed25519.SignatureSize
)

// ErrInvalidSeed is returned when a signing seed has the wrong length.
var ErrInvalidSeed = errors.New("crypto: invalid ed25519 seed, must be 32 bytes")

// GenerateEd25519Seed reads a fresh signing seed from r.
func GenerateEd25519Seed(r io.Reader) ([]byte, error) {
	seed := make([]byte, Ed25519SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// Ed25519FromSeed expands a 32-byte seed into a private key.
func Ed25519FromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != Ed25519SeedSize {
		return nil, ErrInvalidSeed
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Ed25519Verify reports whether sig is a valid signature of msg by pub.
// Keys of the wrong length never verify.
func Ed25519Verify(pub, msg, sig []byte) bool {
	if len(pub) != Ed25519PublicKeySize || len(sig) != Ed25519SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
