package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers.
const (
	fieldType       protowire.Number = 1
	fieldIdentifier protowire.Number = 2
	fieldErrorCode  protowire.Number = 4
	fieldTimestamp  protowire.Number = 5

	// firstExtension is the lowest field number a payload may use.
	firstExtension protowire.Number = 6
)

// Message is one protocol message envelope.
type Message struct {
	Type       Type
	Identifier string
	ErrorCode  int32
	Timestamp  uint64
	Payload    Payload
}

// New returns a message carrying p, typed after the payload.
func New(p Payload) *Message {
	return &Message{Type: p.MessageType(), Payload: p}
}

// String returns a short description for logging.
func (m *Message) String() string {
	if m.Identifier != "" {
		return fmt.Sprintf("%s(%s)", m.Type, m.Identifier)
	}
	return m.Type.String()
}

// CryptoPairing returns the CryptoPairing payload, or nil.
func (m *Message) CryptoPairing() *CryptoPairing {
	p, _ := m.Payload.(*CryptoPairing)
	return p
}

// DeviceInfo returns the DeviceInfo payload, or nil.
func (m *Message) DeviceInfo() *DeviceInfo {
	p, _ := m.Payload.(*DeviceInfo)
	return p
}

// Encode serializes the envelope and its payload.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}

	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(m.Type)))
	if m.Identifier != "" {
		b = protowire.AppendTag(b, fieldIdentifier, protowire.BytesType)
		b = protowire.AppendString(b, m.Identifier)
	}
	if m.ErrorCode != 0 {
		b = protowire.AppendTag(b, fieldErrorCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.ErrorCode)))
	}
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Timestamp)
	}

	if m.Payload == nil {
		return b, nil
	}
	if m.Payload.MessageType() != m.Type {
		return nil, fmt.Errorf("%w: %s payload in %s message", ErrPayloadType, m.Payload.MessageType(), m.Type)
	}
	num, ok := m.Type.PayloadField()
	if raw, isRaw := m.Payload.(*Raw); isRaw && !ok {
		num, ok = raw.Field, raw.Field >= firstExtension
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPayloadField, m.Type)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Payload.appendWire(nil))
	return b, nil
}

// Decode parses an envelope. Unknown envelope fields are skipped. Payloads
// without a registered codec decode to *Raw.
func Decode(data []byte) (*Message, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	m := &Message{}
	var extensions []field
	for _, f := range fields {
		switch {
		case f.num == fieldType && f.typ == protowire.VarintType:
			m.Type = Type(int32(f.varint))
		case f.num == fieldIdentifier && f.typ == protowire.BytesType:
			m.Identifier = string(f.bytes)
		case f.num == fieldErrorCode && f.typ == protowire.VarintType:
			m.ErrorCode = int32(f.varint)
		case f.num == fieldTimestamp && f.typ == protowire.VarintType:
			m.Timestamp = f.varint
		case f.num >= firstExtension && f.typ == protowire.BytesType:
			extensions = append(extensions, f)
		}
	}

	num, known := m.Type.PayloadField()
	for _, f := range extensions {
		if known && f.num != num {
			continue
		}
		decode, ok := decoders[m.Type]
		if !ok {
			m.Payload = &Raw{Type: m.Type, Field: f.num, Data: append([]byte(nil), f.bytes...)}
			break
		}
		if m.Payload, err = decode(f.bytes); err != nil {
			return nil, fmt.Errorf("%s payload: %w", m.Type, err)
		}
		break
	}
	return m, nil
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// parseFields splits a protobuf encoding into its top-level fields.
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}
