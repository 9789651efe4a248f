package verify

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

// Controller implements the controller side of pair verify.
//
// Usage:
//
//	c, _ := verify.NewController(creds)
//	m1, _ := c.Start()
//	// send m1, receive m2
//	m3, _ := c.HandleM2(m2)
//	// send m3, receive m4
//	keys, _ := c.HandleM4(m4)
//	creds.SetSessionKeys(keys.Read, keys.Write)
type Controller struct {
	creds    *credentials.Credentials
	identity *credentials.Identity

	eph        *crypto.X25519KeyPair
	peerEph    []byte
	shared     []byte
	encryptKey []byte
	keys       *SessionKeys

	state State

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewController creates the controller side from credentials produced by
// pair setup.
func NewController(creds *credentials.Credentials) (*Controller, error) {
	if creds == nil {
		return nil, messages.ErrInvalidState
	}
	identity, err := creds.Identity()
	if err != nil {
		return nil, err
	}
	return &Controller{
		creds:    creds,
		identity: identity,
		state:    StateInit,
		rand:     rand.Reader,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start generates the ephemeral key pair and returns M1.
func (c *Controller) Start() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInit {
		return nil, messages.ErrInvalidState
	}

	eph, err := crypto.GenerateX25519(c.rand)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	c.eph = eph

	c.state = StateWaitingM2
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M1),
		tlv8.Bytes(tlv8.TagPublicKey, eph.Public[:]),
	), nil
}

// HandleM2 checks the accessory's identity proof and returns M3.
func (c *Controller) HandleM2(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWaitingM2 {
		return nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M2)
	if err != nil {
		return nil, c.fail(err)
	}

	peerEph, ok1 := rec.Get(tlv8.TagPublicKey)
	enc, ok2 := rec.Get(tlv8.TagEncryptedData)
	if !ok1 || !ok2 {
		return nil, c.fail(fmt.Errorf("%w: M2 missing public key or encrypted data", messages.ErrInvalidMessage))
	}

	shared, err := c.eph.SharedSecret(peerEph)
	if err != nil {
		return nil, c.fail(err)
	}
	encryptKey, err := deriveEncryptKey(shared)
	if err != nil {
		return nil, c.fail(err)
	}

	peerID, sig, err := openProof(encryptKey, crypto.NoncePairVerifyM2, enc)
	if err != nil {
		return nil, c.fail(err)
	}
	if !bytes.Equal(peerID, c.creds.RemoteID) {
		return nil, c.fail(fmt.Errorf("%w: got %q, want %q", messages.ErrIdentifierMismatch, peerID, c.creds.RemoteID))
	}
	if !crypto.Ed25519Verify(c.creds.PeerPublicKey, crypto.Concat(peerEph, peerID, c.eph.Public[:]), sig) {
		return nil, c.fail(messages.ErrSignatureMismatch)
	}

	c.peerEph = append([]byte(nil), peerEph...)
	c.shared = shared
	c.encryptKey = encryptKey

	sealed, err := sealProof(encryptKey, crypto.NoncePairVerifyM3, c.identity, c.eph.Public[:], c.peerEph)
	if err != nil {
		return nil, c.fail(err)
	}

	c.state = StateWaitingM4
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M3),
		tlv8.Bytes(tlv8.TagEncryptedData, sealed),
	), nil
}

// HandleM4 processes the accessory's acknowledgement and derives the
// session keys.
func (c *Controller) HandleM4(data []byte) (*SessionKeys, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWaitingM4 {
		return nil, messages.ErrInvalidState
	}

	if _, err := messages.Expect(data, messages.M4); err != nil {
		return nil, c.fail(err)
	}

	keys, err := deriveSessionKeys(c.shared, true)
	if err != nil {
		return nil, c.fail(err)
	}

	c.wipe()
	c.keys = keys
	c.state = StateComplete
	return keys, nil
}

// SessionKeys returns the derived keys once complete.
func (c *Controller) SessionKeys() *SessionKeys {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys
}

func (c *Controller) wipe() {
	if c.eph != nil {
		c.eph.Wipe()
	}
	crypto.Wipe(c.shared)
	crypto.Wipe(c.encryptKey)
}

func (c *Controller) fail(err error) error {
	if messages.IsFatal(err) {
		c.state = StateFailed
		c.wipe()
	}
	return err
}

// sealProof encrypts identifier and signature over own || id || peer.
func sealProof(key []byte, nonce string, identity *credentials.Identity, own, peer []byte) ([]byte, error) {
	sig := identity.Sign(crypto.Concat(own, identity.ID, peer))
	sub := tlv8.Encode(
		tlv8.Bytes(tlv8.TagIdentifier, identity.ID),
		tlv8.Bytes(tlv8.TagSignature, sig),
	)
	return crypto.Seal(key, crypto.LiteralNonce(nonce), sub, nil)
}

// openProof decrypts an identity proof and returns its identifier and
// signature.
func openProof(key []byte, nonce string, sealed []byte) (id, sig []byte, err error) {
	plain, err := crypto.Open(key, crypto.LiteralNonce(nonce), sealed, nil)
	if err != nil {
		return nil, nil, err
	}
	sub, err := tlv8.Decode(plain)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", messages.ErrInvalidMessage, err)
	}
	id, ok1 := sub.Get(tlv8.TagIdentifier)
	sig, ok2 := sub.Get(tlv8.TagSignature)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("%w: proof missing identifier or signature", messages.ErrInvalidMessage)
	}
	return id, sig, nil
}
