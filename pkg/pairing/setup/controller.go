package setup

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

// Result is the outcome of a completed pair setup: the peer's pairing
// identifier and long-term public key.
type Result struct {
	PeerID        []byte
	PeerPublicKey ed25519.PublicKey
}

// Controller implements the controller side of pair setup.
//
// Usage:
//
//	c, _ := setup.NewController(identity)
//	m1, _ := c.Start()
//	// send m1, receive m2, obtain PIN from the user
//	m3, _ := c.HandleM2(m2, pin)
//	// send m3, receive m4
//	m5, _ := c.HandleM4(m4)
//	// send m5, receive m6
//	result, _ := c.HandleM6(m6)
//	creds := c.Credentials(deviceUID, result)
//
// Handlers return messages.ErrSequenceMismatch without changing state when
// the message carries an unexpected sequence number.
type Controller struct {
	identity *credentials.Identity
	srp      *ControllerSRP

	state  State
	result *Result

	mu sync.Mutex
}

// NewController creates the controller side for the given long-term
// identity. The identity's ID is sent to the accessory as the pairing
// identifier.
func NewController(identity *credentials.Identity) (*Controller, error) {
	if identity == nil {
		return nil, messages.ErrInvalidState
	}
	s, err := NewControllerSRP()
	if err != nil {
		return nil, err
	}
	return &Controller{
		identity: identity,
		srp:      s,
		state:    StateInit,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start returns M1.
func (c *Controller) Start() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInit {
		return nil, messages.ErrInvalidState
	}

	c.state = StateWaitingM2
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagMethod, byte(messages.MethodPairSetup)),
		tlv8.Byte(tlv8.TagSequence, messages.M1),
	), nil
}

// HandleM2 processes the accessory's salt and public value and returns M3.
func (c *Controller) HandleM2(data []byte, pin string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWaitingM2 {
		return nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M2)
	if err != nil {
		return nil, c.fail(err)
	}

	salt, ok1 := rec.Get(tlv8.TagSalt)
	pub, ok2 := rec.Get(tlv8.TagPublicKey)
	if !ok1 || !ok2 {
		return nil, c.fail(fmt.Errorf("%w: M2 missing salt or public key", messages.ErrInvalidMessage))
	}

	if err := c.srp.SetServerParams(salt, pub); err != nil {
		return nil, c.fail(err)
	}
	if err := c.srp.SetPassword(pin); err != nil {
		return nil, c.fail(err)
	}

	c.state = StateWaitingM4
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M3),
		tlv8.Bytes(tlv8.TagPublicKey, c.srp.PublicKey()),
		tlv8.Bytes(tlv8.TagProof, c.srp.Proof()),
	), nil
}

// HandleM4 verifies the accessory's proof and returns M5 carrying the
// controller's encrypted long-term identity.
func (c *Controller) HandleM4(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWaitingM4 {
		return nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M4)
	if err != nil {
		return nil, c.fail(err)
	}

	proof, ok := rec.Get(tlv8.TagProof)
	if !ok {
		return nil, c.fail(fmt.Errorf("%w: M4 missing proof", messages.ErrInvalidMessage))
	}
	if err := c.srp.VerifyProof(proof); err != nil {
		return nil, c.fail(err)
	}

	ltpk := c.identity.PublicKey()
	info := crypto.Concat(c.srp.SignatureMaterial(), c.identity.ID, ltpk)
	sub := tlv8.Encode(
		tlv8.Bytes(tlv8.TagIdentifier, c.identity.ID),
		tlv8.Bytes(tlv8.TagPublicKey, ltpk),
		tlv8.Bytes(tlv8.TagSignature, c.identity.Sign(info)),
	)

	sealed, err := crypto.Seal(c.srp.EncryptionKey(), crypto.LiteralNonce(crypto.NoncePairSetupM5), sub, nil)
	if err != nil {
		return nil, c.fail(err)
	}

	c.state = StateWaitingM6
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M5),
		tlv8.Bytes(tlv8.TagEncryptedData, sealed),
	), nil
}

// HandleM6 decrypts and verifies the accessory's long-term identity.
func (c *Controller) HandleM6(data []byte) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWaitingM6 {
		return nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M6)
	if err != nil {
		return nil, c.fail(err)
	}

	enc, ok := rec.Get(tlv8.TagEncryptedData)
	if !ok {
		return nil, c.fail(fmt.Errorf("%w: M6 missing encrypted data", messages.ErrInvalidMessage))
	}

	result, err := openIdentity(c.srp.EncryptionKey(), crypto.NoncePairSetupM6, enc, c.srp.PeerSignatureMaterial())
	if err != nil {
		return nil, c.fail(err)
	}

	c.srp.Wipe()
	c.result = result
	c.state = StateComplete
	return result, nil
}

// Result returns the setup result once complete.
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Credentials builds the controller's trust record for the device with
// the given advertised identifier.
func (c *Controller) Credentials(deviceUID string, result *Result) *credentials.Credentials {
	return credentials.New(deviceUID, result.PeerID, c.identity.ID, result.PeerPublicKey, c.identity.Seed)
}

// fail moves to StateFailed unless err is a dropped sequence mismatch.
func (c *Controller) fail(err error) error {
	if messages.IsFatal(err) {
		c.state = StateFailed
	}
	return err
}

// openIdentity decrypts an M5/M6 sub-TLV and verifies its signature over
// material || identifier || public key.
func openIdentity(key []byte, nonce string, sealed, material []byte) (*Result, error) {
	plain, err := crypto.Open(key, crypto.LiteralNonce(nonce), sealed, nil)
	if err != nil {
		return nil, err
	}

	sub, err := tlv8.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", messages.ErrInvalidMessage, err)
	}

	id, ok1 := sub.Get(tlv8.TagIdentifier)
	ltpk, ok2 := sub.Get(tlv8.TagPublicKey)
	sig, ok3 := sub.Get(tlv8.TagSignature)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: identity missing fields", messages.ErrInvalidMessage)
	}

	if !crypto.Ed25519Verify(ltpk, crypto.Concat(material, id, ltpk), sig) {
		return nil, messages.ErrSignatureMismatch
	}

	return &Result{
		PeerID:        append([]byte(nil), id...),
		PeerPublicKey: ed25519.PublicKey(append([]byte(nil), ltpk...)),
	}, nil
}
