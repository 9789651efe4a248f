// Package messages defines the values shared by the pair setup and pair
// verify state machines: methods, sequence numbers, error codes and the
// error kinds surfaced to callers.
package messages

import (
	"fmt"

	"github.com/backkem/mediaremote/pkg/tlv8"
)

// Method selects the pairing operation carried in M1.
type Method byte

const (
	MethodPairSetup         Method = 0
	MethodPairSetupWithAuth Method = 1
	MethodPairVerify        Method = 2
	MethodAddPairing        Method = 3
	MethodRemovePairing     Method = 4
	MethodListPairings      Method = 5
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodPairSetup:
		return "PairSetup"
	case MethodPairSetupWithAuth:
		return "PairSetupWithAuth"
	case MethodPairVerify:
		return "PairVerify"
	case MethodAddPairing:
		return "AddPairing"
	case MethodRemovePairing:
		return "RemovePairing"
	case MethodListPairings:
		return "ListPairings"
	default:
		return fmt.Sprintf("Method(%d)", byte(m))
	}
}

// Sequence numbers of the handshake messages. Setup uses M1 to M6,
// verify uses M1 to M4.
const (
	M1 byte = 1
	M2 byte = 2
	M3 byte = 3
	M4 byte = 4
	M5 byte = 5
	M6 byte = 6
)

// ErrorCode is the value of an ErrorCode TLV.
type ErrorCode byte

const (
	ErrorUnknown        ErrorCode = 0x01
	ErrorAuthentication ErrorCode = 0x02
	ErrorBackOff        ErrorCode = 0x03
	ErrorMaxPeers       ErrorCode = 0x04
	ErrorMaxTries       ErrorCode = 0x05
	ErrorUnavailable    ErrorCode = 0x06
	ErrorBusy           ErrorCode = 0x07
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorUnknown:
		return "Unknown"
	case ErrorAuthentication:
		return "Authentication"
	case ErrorBackOff:
		return "BackOff"
	case ErrorMaxPeers:
		return "MaxPeers"
	case ErrorMaxTries:
		return "MaxTries"
	case ErrorUnavailable:
		return "Unavailable"
	case ErrorBusy:
		return "Busy"
	default:
		return fmt.Sprintf("ErrorCode(%d)", byte(c))
	}
}

// Sequence returns the sequence number of rec.
func Sequence(rec tlv8.Record) (byte, bool) {
	return rec.Byte(tlv8.TagSequence)
}

// CheckStatus inspects a received handshake message for BackOff and
// ErrorCode entries. BackOff is checked first.
func CheckStatus(rec tlv8.Record) error {
	if secs, ok := rec.Uint(tlv8.TagBackOff); ok && secs != 0 {
		return &BackOffError{Seconds: secs}
	}
	if code, ok := rec.Byte(tlv8.TagErrorCode); ok {
		return &PeerError{Code: ErrorCode(code)}
	}
	return nil
}

// Expect decodes a received handshake message, checks it for BackOff and
// ErrorCode entries, then checks that its sequence number is seq.
func Expect(data []byte, seq byte) (tlv8.Record, error) {
	rec, err := tlv8.Decode(data)
	if err != nil {
		return tlv8.Record{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := CheckStatus(rec); err != nil {
		return rec, err
	}
	got, ok := Sequence(rec)
	if !ok {
		return rec, fmt.Errorf("%w: missing sequence", ErrInvalidMessage)
	}
	if got != seq {
		return rec, ErrSequenceMismatch
	}
	return rec, nil
}

// ErrorReply builds a handshake reply signalling code at sequence seq.
func ErrorReply(seq byte, code ErrorCode) []byte {
	return tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, seq),
		tlv8.Byte(tlv8.TagErrorCode, byte(code)),
	)
}
