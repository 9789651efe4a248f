package credentials

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"strings"

	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/google/uuid"
)

// Identity is a long-term Ed25519 signing identity with its pairing
// identifier. Accessories load one identity for the life of the process;
// controllers create one per pairing.
type Identity struct {
	ID   []byte
	Seed []byte

	priv ed25519.PrivateKey
}

// NewIdentity builds an identity from a stored identifier and seed.
func NewIdentity(id, seed []byte) (*Identity, error) {
	priv, err := crypto.Ed25519FromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:   copyBytes(id),
		Seed: copyBytes(seed),
		priv: priv,
	}, nil
}

// GenerateIdentity creates an identity with a fresh seed read from r.
// If id is empty a random upper-case UUID is used as the identifier.
// A nil reader uses crypto/rand.
func GenerateIdentity(r io.Reader, id string) (*Identity, error) {
	if r == nil {
		r = rand.Reader
	}
	if id == "" {
		id = NewPairingID()
	}
	seed, err := crypto.GenerateEd25519Seed(r)
	if err != nil {
		return nil, err
	}
	return NewIdentity([]byte(id), seed)
}

// NewPairingID returns a random pairing identifier.
func NewPairingID() string {
	return strings.ToUpper(uuid.NewString())
}

// PublicKey returns the Ed25519 public key.
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// Sign signs msg with the long-term key.
func (i *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(i.priv, msg)
}

// Peer is an accessory's record of a paired controller.
type Peer struct {
	ID        []byte
	PublicKey ed25519.PublicKey
}

// Clone returns a deep copy.
func (p *Peer) Clone() *Peer {
	return &Peer{
		ID:        copyBytes(p.ID),
		PublicKey: ed25519.PublicKey(copyBytes(p.PublicKey)),
	}
}
