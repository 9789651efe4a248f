package messages

import (
	"errors"
	"fmt"
)

// Errors shared by the pairing state machines.
var (
	// ErrProofMismatch is returned when the SRP proof does not verify,
	// which in practice means the PIN was wrong.
	ErrProofMismatch = errors.New("pairing: invalid PIN")

	// ErrSignatureMismatch is returned when a peer's identity signature
	// does not verify against its long-term public key.
	ErrSignatureMismatch = errors.New("pairing: signature verification failed")

	// ErrIdentifierMismatch is returned when a peer presents a different
	// identifier than the one that was trusted.
	ErrIdentifierMismatch = errors.New("pairing: peer identifier mismatch")

	// ErrSequenceMismatch is returned for a message whose sequence number
	// is not the expected next one. Orchestrators drop such messages.
	ErrSequenceMismatch = errors.New("pairing: unexpected sequence number")

	// ErrUnknownPeer is returned when a controller is not paired.
	ErrUnknownPeer = errors.New("pairing: unknown peer")

	// ErrInvalidState is returned when a handler is called out of order
	// or for the wrong role.
	ErrInvalidState = errors.New("pairing: invalid state")

	// ErrInvalidMessage is returned when a required TLV entry is missing
	// or malformed.
	ErrInvalidMessage = errors.New("pairing: invalid message")
)

// BackOffError reports that the peer asked to retry after a delay.
type BackOffError struct {
	Seconds uint64
}

func (e *BackOffError) Error() string {
	return fmt.Sprintf("pairing: device asked to back off, retry in %d seconds", e.Seconds)
}

// PeerError reports an ErrorCode sent by the peer.
type PeerError struct {
	Code ErrorCode
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("pairing: device rejected the request (%s), a reboot of the device may help", e.Code)
}

// IsFatal reports whether err must abort the current handshake. Sequence
// mismatches are the only recoverable condition.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrSequenceMismatch)
}
