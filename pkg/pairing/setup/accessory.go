package setup

import (
	"fmt"
	"sync"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

// Accessory implements the accessory side of pair setup.
//
// Usage:
//
//	a, _ := setup.NewAccessory(identity, code)
//	m2, _ := a.HandleM1(m1)
//	// display code, send m2, receive m3
//	m4, _ := a.HandleM3(m3)
//	// send m4, receive m5
//	m6, result, _ := a.HandleM5(m5)
//	// send m6, store result as a paired controller
//
// When verification fails the handlers return both an error reply to send
// to the controller and the error.
type Accessory struct {
	identity *credentials.Identity
	code     string
	srp      *AccessorySRP

	state  State
	result *Result

	mu sync.Mutex
}

// NewAccessory creates the accessory side for a long-term identity and the
// setup code shown to the user.
func NewAccessory(identity *credentials.Identity, code string) (*Accessory, error) {
	if identity == nil {
		return nil, messages.ErrInvalidState
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return &Accessory{
		identity: identity,
		code:     code,
		state:    StateInit,
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
	method, ok := rec.Byte(tlv8.TagMethod)
	if !ok {
		return nil, fmt.Errorf("%w: M1 missing method", messages.ErrInvalidMessage)
	}
	if m := messages.Method(method); m != messages.MethodPairSetup && m != messages.MethodPairSetupWithAuth {
		return messages.ErrorReply(messages.M2, messages.ErrorUnknown),
			fmt.Errorf("%w: unsupported method %s", messages.ErrInvalidMessage, m)
	}

	s, err := NewAccessorySRP(a.code)
	if err != nil {
		a.state = StateFailed
		return messages.ErrorReply(messages.M2, messages.ErrorUnavailable), err
	}
	if a.srp != nil {
		a.srp.Wipe()
	}
	a.srp = s
	a.result = nil

	a.state = StateWaitingM3
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M2),
		tlv8.Bytes(tlv8.TagSalt, s.Salt()),
		tlv8.Bytes(tlv8.TagPublicKey, s.PublicKey()),
	), nil
}

// HandleM3 verifies the controller's proof and returns M4. A wrong PIN
// yields an Authentication error reply and messages.ErrProofMismatch.
func (a *Accessory) HandleM3(data []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateWaitingM3 {
		return nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M3)
	if err != nil {
		return nil, a.fail(err)
	}

	pub, ok1 := rec.Get(tlv8.TagPublicKey)
	proof, ok2 := rec.Get(tlv8.TagProof)
	if !ok1 || !ok2 {
		return messages.ErrorReply(messages.M4, messages.ErrorAuthentication),
			a.fail(fmt.Errorf("%w: M3 missing public key or proof", messages.ErrInvalidMessage))
	}

	if err := a.srp.SetClientPublicKey(pub); err != nil {
		return messages.ErrorReply(messages.M4, messages.ErrorAuthentication), a.fail(err)
	}
	serverProof, err := a.srp.VerifyProof(proof)
	if err != nil {
		return messages.ErrorReply(messages.M4, messages.ErrorAuthentication), a.fail(err)
	}

	a.state = StateWaitingM5
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M4),
		tlv8.Bytes(tlv8.TagProof, serverProof),
	), nil
}

// HandleM5 verifies the controller's long-term identity and returns M6
// carrying the accessory's.
func (a *Accessory) HandleM5(data []byte) ([]byte, *Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateWaitingM5 {
		return nil, nil, messages.ErrInvalidState
	}

	rec, err := messages.Expect(data, messages.M5)
	if err != nil {
		return nil, nil, a.fail(err)
	}

	enc, ok := rec.Get(tlv8.TagEncryptedData)
	if !ok {
		return messages.ErrorReply(messages.M6, messages.ErrorAuthentication), nil,
			a.fail(fmt.Errorf("%w: M5 missing encrypted data", messages.ErrInvalidMessage))
	}

	result, err := openIdentity(a.srp.EncryptionKey(), crypto.NoncePairSetupM5, enc, a.srp.PeerSignatureMaterial())
	if err != nil {
		return messages.ErrorReply(messages.M6, messages.ErrorAuthentication), nil, a.fail(err)
	}

	ltpk := a.identity.PublicKey()
	info := crypto.Concat(a.srp.SignatureMaterial(), a.identity.ID, ltpk)
	sub := tlv8.Encode(
		tlv8.Bytes(tlv8.TagIdentifier, a.identity.ID),
		tlv8.Bytes(tlv8.TagPublicKey, ltpk),
		tlv8.Bytes(tlv8.TagSignature, a.identity.Sign(info)),
	)
	sealed, err := crypto.Seal(a.srp.EncryptionKey(), crypto.LiteralNonce(crypto.NoncePairSetupM6), sub, nil)
	if err != nil {
		return messages.ErrorReply(messages.M6, messages.ErrorUnknown), nil, a.fail(err)
	}

	a.srp.Wipe()
	a.result = result
	a.state = StateComplete
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M6),
		tlv8.Bytes(tlv8.TagEncryptedData, sealed),
	), result, nil
}

// Result returns the setup result once complete.
func (a *Accessory) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Peer converts a result into the accessory's record of the controller.
func (r *Result) Peer() *credentials.Peer {
	return &credentials.Peer{ID: r.PeerID, PublicKey: r.PeerPublicKey}
}

func (a *Accessory) fail(err error) error {
	if messages.IsFatal(err) {
		a.state = StateFailed
	}
	return err
}
