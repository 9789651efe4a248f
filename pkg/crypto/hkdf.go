package crypto

import (
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every symmetric key derived during pairing.
const KeySize = 32

// HKDF derives key material using HKDF (RFC 5869) with the given hash.
//
// Parameters:
//   - newHash: Hash constructor (e.g. sha512.New)
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
//
// Returns the derived key material of the specified length.
func HKDF(newHash func() hash.Hash, inputKey, salt, info []byte, length int) ([]byte, error) {
	// HKDF = HKDF-Expand(PRK := HKDF-Extract(salt, IKM), info, L)
	reader := hkdf.New(newHash, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// HKDFSHA512 derives key material using HKDF-SHA512.
// All pairing keys use SHA-512 with ASCII salt and info literals.
func HKDFSHA512(inputKey, salt, info []byte, length int) ([]byte, error) {
	return HKDF(sha512.New, inputKey, salt, info, length)
}

// DeriveKey derives a KeySize key from inputKey with string salt and info.
func DeriveKey(inputKey []byte, salt, info string) ([]byte, error) {
	return HKDFSHA512(inputKey, []byte(salt), []byte(info), KeySize)
}
