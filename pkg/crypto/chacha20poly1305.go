// ChaCha20-Poly1305 authenticated encryption for pairing and session traffic.
// The one-time Poly1305 key is the first 32 bytes of keystream at block
// counter 0; the payload is encrypted starting at block counter 1. The MAC
// covers:
//
//	AD || pad16(AD) || CT || pad16(CT) || le64(len(AD)) || le64(len(CT))

package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// AEAD constants.
const (
	// TagSize is the Poly1305 authentication tag length.
	TagSize = poly1305.TagSize

	// NonceSize is the length of the nonces used on the wire.
	NonceSize = 8

	// FullNonceSize is the ChaCha20 nonce length after left padding.
	FullNonceSize = chacha20.NonceSize
)

// Errors
var (
	ErrInvalidKeySize   = errors.New("crypto: invalid key size, must be 32 bytes")
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size, must be 8 or 12 bytes")
	ErrDecryptFailure   = errors.New("crypto: message authentication failed")
)

// EncryptAndSeal encrypts plaintext and authenticates it together with ad.
// It returns the ciphertext and the detached 16-byte tag.
func EncryptAndSeal(key, nonce, plaintext, ad []byte) (ciphertext, tag []byte, err error) {
	c, polyKey, err := newCipher(key, nonce)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = make([]byte, len(plaintext))
	c.XORKeyStream(ciphertext, plaintext)

	sum := computeTag(&polyKey, ad, ciphertext)
	return ciphertext, sum[:], nil
}

// VerifyAndDecrypt checks tag over ad and ciphertext and, if it matches,
// returns the plaintext. On mismatch it returns ErrDecryptFailure and no data.
func VerifyAndDecrypt(key, nonce, ciphertext, tag, ad []byte) ([]byte, error) {
	if len(tag) != TagSize {
		return nil, ErrDecryptFailure
	}

	c, polyKey, err := newCipher(key, nonce)
	if err != nil {
		return nil, err
	}

	expected := computeTag(&polyKey, ad, ciphertext)
	if subtle.ConstantTimeCompare(expected[:], tag) != 1 {
		return nil, ErrDecryptFailure
	}

	plaintext := make([]byte, len(ciphertext))
	c.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// Seal encrypts plaintext and returns ciphertext||tag.
func Seal(key, nonce, plaintext, ad []byte) ([]byte, error) {
	ct, tag, err := EncryptAndSeal(key, nonce, plaintext, ad)
	if err != nil {
		return nil, err
	}
	return append(ct, tag...), nil
}

// Open splits sealed into ciphertext and tag and decrypts it.
func Open(key, nonce, sealed, ad []byte) ([]byte, error) {
	if len(sealed) < TagSize {
		return nil, ErrDecryptFailure
	}
	split := len(sealed) - TagSize
	return VerifyAndDecrypt(key, nonce, sealed[:split], sealed[split:], ad)
}

// newCipher returns a ChaCha20 cipher positioned at block counter 1 and the
// one-time Poly1305 key taken from block 0.
func newCipher(key, nonce []byte) (*chacha20.Cipher, [32]byte, error) {
	var polyKey [32]byte

	if len(key) != KeySize {
		return nil, polyKey, ErrInvalidKeySize
	}
	full, err := expandNonce(nonce)
	if err != nil {
		return nil, polyKey, err
	}

	c, err := chacha20.NewUnauthenticatedCipher(key, full)
	if err != nil {
		return nil, polyKey, err
	}
	c.XORKeyStream(polyKey[:], polyKey[:])
	c.SetCounter(1)
	return c, polyKey, nil
}

// expandNonce left-pads an 8-byte nonce with four zero bytes.
func expandNonce(nonce []byte) ([]byte, error) {
	switch len(nonce) {
	case FullNonceSize:
		return nonce, nil
	case NonceSize:
		full := make([]byte, FullNonceSize)
		copy(full[FullNonceSize-NonceSize:], nonce)
		return full, nil
	default:
		return nil, ErrInvalidNonceSize
	}
}

func computeTag(key *[32]byte, ad, ciphertext []byte) [TagSize]byte {
	var pad [16]byte
	mac := poly1305.New(key)

	mac.Write(ad)
	if rem := len(ad) % 16; rem != 0 {
		mac.Write(pad[:16-rem])
	}
	mac.Write(ciphertext)
	if rem := len(ciphertext) % 16; rem != 0 {
		mac.Write(pad[:16-rem])
	}

	var lengths [16]byte
	binary.LittleEndian.PutUint64(lengths[0:8], uint64(len(ad)))
	binary.LittleEndian.PutUint64(lengths[8:16], uint64(len(ciphertext)))
	mac.Write(lengths[:])

	var sum [TagSize]byte
	mac.Sum(sum[:0])
	return sum
}
