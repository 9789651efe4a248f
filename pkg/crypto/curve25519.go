package crypto

import (
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519 sizes.
const (
	X25519KeySize = curve25519.PointSize
)

// ErrInvalidPublicKey is returned for malformed or low-order peer keys.
var ErrInvalidPublicKey = errors.New("crypto: invalid public key")

// X25519KeyPair is an ephemeral Curve25519 key pair.
type X25519KeyPair struct {
	Private [X25519KeySize]byte
	Public  [X25519KeySize]byte
}

// GenerateX25519 creates a key pair using random bytes from r.
func GenerateX25519(r io.Reader) (*X25519KeyPair, error) {
	kp := &X25519KeyPair{}
	if _, err := io.ReadFull(r, kp.Private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes X25519(private, peer). Low-order peer keys that
// produce an all-zero secret are rejected.
func (kp *X25519KeyPair) SharedSecret(peer []byte) ([]byte, error) {
	if len(peer) != X25519KeySize {
		return nil, ErrInvalidPublicKey
	}
	shared, err := curve25519.X25519(kp.Private[:], peer)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return shared, nil
}

// Wipe clears the private key.
func (kp *X25519KeyPair) Wipe() {
	Wipe(kp.Private[:])
}
