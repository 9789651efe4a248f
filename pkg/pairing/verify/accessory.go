package verify

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

// PeerLookup returns the paired controller with the given identifier.
// It returns an error wrapping messages.ErrUnknownPeer when none exists.
type PeerLookup func(id []byte) (*credentials.Peer, error)

// Result is the outcome of a completed verify on the accessory side.
type Result struct {
	Peer *credentials.Peer
	Keys *SessionKeys
}

// Accessory implements the accessory side of pair verify.
//
// Usage:
//
//	a, _ := verify.NewAccessory(identity, store.LoadPeer)
//	m2, _ := a.HandleM1(m1)
//	// send m2, receive m3
//	m4, result, _ := a.HandleM3(m3)
//	// send m4, then switch the connection to result.Keys
type Accessory struct {
	identity *credentials.Identity
	lookup   PeerLookup

	eph        *crypto.X25519KeyPair
	peerEph    []byte
	shared     []byte
	encryptKey []byte
	result     *Result

	state State

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewAccessory creates the accessory side for its long-term identity.
func NewAccessory(identity *credentials.Identity, lookup PeerLookup) (*Accessory, error) {
	if identity == nil || lookup == nil {
		return nil, messages.ErrInvalidState
	}
	return &Accessory{
		identity: identity,
		lookup:   lookup,
		state:    StateInit,
		rand:     rand.Reader,
	}, nil
}

// State returns the current state.
func (a *Accessory) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// HandleM1 starts, or restarts, the exchange and returns M2.
func (a *Accessory) HandleM1(data []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, err := messages.Expect(data, messages.M1)
	if err != nil {
		return nil, err
	}
	peerEph, ok := rec.Get(tlv8.TagPublicKey)
	if !ok || len(peerEph) != crypto.X25519KeySize {
		return messages.ErrorReply(messages.M2, messages.ErrorUnknown),
			fmt.Errorf("%w: M1 missing public key", messages.ErrInvalidMessage)
	}

	a.wipe()
	a.result = nil

	eph, err := crypto.GenerateX25519(a.rand)
	if err != nil {
		a.state = StateFailed
		return messages.ErrorReply(messages.M2, messages.ErrorUnknown), err
	}
	shared, err := eph.SharedSecret(peerEph)
	if err != nil {
		a.state = StateFailed
		return messages.ErrorReply(messages.M2, messages.ErrorAuthentication), err
	}
	encryptKey, err := deriveEncryptKey(shared)
	if err != nil {
		a.state = StateFailed
		return messages.ErrorReply(messages.M2, messages.ErrorUnknown), err
	}

	a.eph = eph
	a.peerEph = append([]byte(nil), peerEph...)
	a.shared = shared
	a.encryptKey = encryptKey

	sealed, err := sealProof(encryptKey, crypto.NoncePairVerifyM2, a.identity, eph.Public[:], a.peerEph)
	if err != nil {
		a.state = StateFailed
		return messages.ErrorReply(messages.M2, messages.ErrorUnknown), err
	}

	a.state = StateWaitingM3
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M2),
		tlv8.Bytes(tlv8.TagPublicKey, eph.Public[:]),
		tlv8.Bytes(tlv8.TagEncryptedData, sealed),
	), nil
}

// HandleM3 checks the controller's identity proof and returns M4 with the
// session keys. On failure it returns an Authentication error reply.
func (a *Accessory) HandleM3(data []byte) ([]byte, *Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateWaitingM3 {
		return nil, nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M3)
	if err != nil {
		return nil, nil, a.fail(err)
	}

	reject := messages.ErrorReply(messages.M4, messages.ErrorAuthentication)

	enc, ok := rec.Get(tlv8.TagEncryptedData)
	if !ok {
		return reject, nil, a.fail(fmt.Errorf("%w: M3 missing encrypted data", messages.ErrInvalidMessage))
	}
	peerID, sig, err := openProof(a.encryptKey, crypto.NoncePairVerifyM3, enc)
	if err != nil {
		return reject, nil, a.fail(err)
	}

	peer, err := a.lookup(peerID)
	if err != nil {
		if !errors.Is(err, messages.ErrUnknownPeer) {
			err = fmt.Errorf("%w: %v", messages.ErrUnknownPeer, err)
		}
		return reject, nil, a.fail(err)
	}
	if !crypto.Ed25519Verify(peer.PublicKey, crypto.Concat(a.peerEph, peerID, a.eph.Public[:]), sig) {
		return reject, nil, a.fail(messages.ErrSignatureMismatch)
	}

	keys, err := deriveSessionKeys(a.shared, false)
	if err != nil {
		return messages.ErrorReply(messages.M4, messages.ErrorUnknown), nil, a.fail(err)
	}

	a.wipe()
	a.result = &Result{Peer: peer, Keys: keys}
	a.state = StateComplete
	return tlv8.Encode(tlv8.Byte(tlv8.TagSequence, messages.M4)), a.result, nil
}

// Result returns the verify result once complete.
func (a *Accessory) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

func (a *Accessory) wipe() {
	if a.eph != nil {
		a.eph.Wipe()
	}
	crypto.Wipe(a.shared)
	crypto.Wipe(a.encryptKey)
}

func (a *Accessory) fail(err error) error {
	if messages.IsFatal(err) {
		a.state = StateFailed
		a.wipe()
	}
	return err
}
