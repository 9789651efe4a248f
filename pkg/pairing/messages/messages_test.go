package messages

import (
	"errors"
	"testing"

	"github.com/backkem/mediaremote/pkg/tlv8"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		backOff uint64
		code    ErrorCode
	}{
		{
			name: "ok",
			data: tlv8.Encode(tlv8.Byte(tlv8.TagSequence, M2)),
		},
		{
			name:    "back off",
			data:    tlv8.Encode(tlv8.Byte(tlv8.TagSequence, M2), tlv8.Uint(tlv8.TagBackOff, 30)),
			backOff: 30,
		},
		{
			name: "zero back off",
			data: tlv8.Encode(tlv8.Byte(tlv8.TagSequence, M2), tlv8.Uint(tlv8.TagBackOff, 0)),
		},
		{
			name:    "back off wins over error code",
			data:    tlv8.Encode(tlv8.Byte(tlv8.TagErrorCode, byte(ErrorBackOff)), tlv8.Uint(tlv8.TagBackOff, 5)),
			backOff: 5,
		},
		{
			name: "error code",
			data: ErrorReply(M4, ErrorAuthentication),
			code: ErrorAuthentication,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := tlv8.Decode(tc.data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			err = CheckStatus(rec)

			var bo *BackOffError
			var pe *PeerError
			switch {
			case tc.backOff != 0:
				if !errors.As(err, &bo) {
					t.Fatalf("CheckStatus() = %v, want *BackOffError", err)
				}
				if bo.Seconds != tc.backOff {
					t.Errorf("Seconds = %d, want %d", bo.Seconds, tc.backOff)
				}
			case tc.code != 0:
				if !errors.As(err, &pe) {
					t.Fatalf("CheckStatus() = %v, want *PeerError", err)
				}
				if pe.Code != tc.code {
					t.Errorf("Code = %s, want %s", pe.Code, tc.code)
				}
			default:
				if err != nil {
					t.Errorf("CheckStatus() = %v, want nil", err)
				}
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true")
	}
	if IsFatal(ErrSequenceMismatch) {
		t.Error("IsFatal(ErrSequenceMismatch) = true")
	}
	if !IsFatal(ErrProofMismatch) {
		t.Error("IsFatal(ErrProofMismatch) = false")
	}
	if !IsFatal(&PeerError{Code: ErrorBusy}) {
		t.Error("IsFatal(PeerError) = false")
	}
}

func TestExpect(t *testing.T) {
	data := tlv8.Encode(tlv8.Byte(tlv8.TagSequence, M2), tlv8.Bytes(tlv8.TagSalt, []byte{1}))

	if _, err := Expect(data, M2); err != nil {
		t.Errorf("Expect(M2) = %v, want nil", err)
	}
	if _, err := Expect(data, M4); !errors.Is(err, ErrSequenceMismatch) {
		t.Errorf("Expect(M4) = %v, want ErrSequenceMismatch", err)
	}
	if _, err := Expect([]byte{0x06}, M2); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Expect(truncated) = %v, want ErrInvalidMessage", err)
	}
	if _, err := Expect(tlv8.Encode(tlv8.Bytes(tlv8.TagSalt, []byte{1})), M2); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Expect(no sequence) = %v, want ErrInvalidMessage", err)
	}

	// Status entries are reported before the sequence check.
	var pe *PeerError
	if _, err := Expect(ErrorReply(M4, ErrorAuthentication), M2); !errors.As(err, &pe) {
		t.Errorf("Expect(error reply) = %v, want *PeerError", err)
	}
}
