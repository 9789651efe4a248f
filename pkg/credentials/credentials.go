package credentials

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/backkem/mediaremote/pkg/crypto"
)

// Errors
var (
	ErrInvalidFormat  = errors.New("credentials: invalid serialized format")
	ErrNoSessionKeys  = errors.New("credentials: no session keys installed")
	ErrInvalidKeySize = errors.New("credentials: invalid session key size")
)

// fieldCount is the number of colon-separated fields in the serialized form.
const fieldCount = 5

// Credentials is the trust record a controller keeps for one paired device,
// plus the live session keys and message counters for its connection.
//
// The long-term fields are produced by pair setup and never change. The
// session keys are installed by each successful pair verify; the counters
// restart at zero whenever new keys are installed and only move forward
// while those keys are in use.
type Credentials struct {
	// DeviceUID is the unique identifier the device advertises.
	DeviceUID string

	// RemoteID is the pairing identifier the device presented in setup.
	RemoteID []byte

	// LocalID is this controller's pairing identifier.
	LocalID []byte

	// PeerPublicKey is the device's long-term Ed25519 public key.
	PeerPublicKey ed25519.PublicKey

	// Seed is this controller's long-term Ed25519 seed.
	Seed []byte

	mu           sync.Mutex
	readKey      []byte
	writeKey     []byte
	encryptCount uint64
	decryptCount uint64
}

// New creates a credentials record with no session keys.
func New(deviceUID string, remoteID, localID []byte, peerPublicKey ed25519.PublicKey, seed []byte) *Credentials {
	return &Credentials{
		DeviceUID:     deviceUID,
		RemoteID:      copyBytes(remoteID),
		LocalID:       copyBytes(localID),
		PeerPublicKey: ed25519.PublicKey(copyBytes(peerPublicKey)),
		Seed:          copyBytes(seed),
	}
}

// Identity returns this controller's long-term signing identity.
func (c *Credentials) Identity() (*Identity, error) {
	return NewIdentity(c.LocalID, c.Seed)
}

// SetSessionKeys installs the read and write keys derived by pair verify
// and resets both counters.
func (c *Credentials) SetSessionKeys(readKey, writeKey []byte) error {
	if len(readKey) != crypto.KeySize || len(writeKey) != crypto.KeySize {
		return ErrInvalidKeySize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.readKey = copyBytes(readKey)
	c.writeKey = copyBytes(writeKey)
	c.encryptCount = 0
	c.decryptCount = 0
	return nil
}

// HasSessionKeys reports whether pair verify has installed session keys.
func (c *Credentials) HasSessionKeys() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeKey != nil
}

// Counters returns the encrypt and decrypt counters.
func (c *Credentials) Counters() (encrypt, decrypt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encryptCount, c.decryptCount
}

// Encrypt seals plaintext under the write key with the next encrypt counter
// as nonce. The counter is advanced once per call.
func (c *Credentials) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeKey == nil {
		return nil, ErrNoSessionKeys
	}

	sealed, err := crypto.Seal(c.writeKey, crypto.CounterNonce(c.encryptCount), plaintext, nil)
	if err != nil {
		return nil, err
	}
	c.encryptCount++
	return sealed, nil
}

// Decrypt opens sealed under the read key with the next decrypt counter as
// nonce. The counter is advanced only when authentication succeeds.
func (c *Credentials) Decrypt(sealed []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readKey == nil {
		return nil, ErrNoSessionKeys
	}

	plaintext, err := crypto.Open(c.readKey, crypto.CounterNonce(c.decryptCount), sealed, nil)
	if err != nil {
		return nil, err
	}
	c.decryptCount++
	return plaintext, nil
}

// Clone returns a copy of the long-term fields without session state.
func (c *Credentials) Clone() *Credentials {
	return New(c.DeviceUID, c.RemoteID, c.LocalID, c.PeerPublicKey, c.Seed)
}

// String serializes the long-term fields as
//
//	DeviceUID:hex(RemoteID):hex(LocalID):hex(PeerPublicKey):hex(Seed)
//
// The device identifier is kept as text; the rest are lower-case hex.
func (c *Credentials) String() string {
	return strings.Join([]string{
		c.DeviceUID,
		hex.EncodeToString(c.RemoteID),
		hex.EncodeToString(c.LocalID),
		hex.EncodeToString(c.PeerPublicKey),
		hex.EncodeToString(c.Seed),
	}, ":")
}

// Parse reads credentials produced by String.
func Parse(s string) (*Credentials, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != fieldCount {
		return nil, fmt.Errorf("%w: got %d fields, want %d", ErrInvalidFormat, len(parts), fieldCount)
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty device identifier", ErrInvalidFormat)
	}

	fields := make([][]byte, fieldCount-1)
	for i, p := range parts[1:] {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, i+2, err)
		}
		fields[i] = b
	}

	if len(fields[2]) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes", ErrInvalidFormat, len(fields[2]))
	}
	if len(fields[3]) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrInvalidFormat, len(fields[3]))
	}

	return &Credentials{
		DeviceUID:     parts[0],
		RemoteID:      fields[0],
		LocalID:       fields[1],
		PeerPublicKey: ed25519.PublicKey(fields[2]),
		Seed:          fields[3],
	}, nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
