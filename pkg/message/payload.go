package message

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Payload is the type-specific body of a message.
type Payload interface {
	// MessageType returns the envelope type the payload belongs to.
	MessageType() Type

	appendWire(b []byte) []byte
}

var decoders = map[Type]func([]byte) (Payload, error){
	TypeCryptoPairing: decodeCryptoPairing,
	TypeDeviceInfo:    decodeDeviceInfo,
	TypeSendCommand:   decodeSendCommand,
}

// Raw is a payload kept as undecoded bytes.
type Raw struct {
	Type  Type
	Field protowire.Number // used when Type has no registered field
	Data  []byte
}

// MessageType implements Payload.
func (r *Raw) MessageType() Type { return r.Type }

func (r *Raw) appendWire(b []byte) []byte { return append(b, r.Data...) }

// CryptoPairing carries one pairing handshake message.
type CryptoPairing struct {
	PairingData          []byte
	Status               int32
	IsRetrying           bool
	IsUsingSystemPairing bool
	State                int32
}

// NewCryptoPairing wraps TLV8 pairing data. setup marks pair setup
// messages, which carry State 2.
func NewCryptoPairing(data []byte, setup bool) *Message {
	p := &CryptoPairing{PairingData: data}
	if setup {
		p.State = PairingStateSetup
	}
	return New(p)
}

// MessageType implements Payload.
func (p *CryptoPairing) MessageType() Type { return TypeCryptoPairing }

func (p *CryptoPairing) appendWire(b []byte) []byte {
	b = appendBytesField(b, 1, p.PairingData)
	b = appendVarintField(b, 2, uint64(int64(p.Status)))
	b = appendVarintField(b, 3, protowire.EncodeBool(p.IsRetrying))
	b = appendVarintField(b, 4, protowire.EncodeBool(p.IsUsingSystemPairing))
	if p.State != PairingStateNone {
		b = appendVarintField(b, 5, uint64(int64(p.State)))
	}
	return b
}

func decodeCryptoPairing(data []byte) (Payload, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	p := &CryptoPairing{}
	for _, f := range fields {
		switch f.num {
		case 1:
			p.PairingData = append(p.PairingData, f.bytes...)
		case 2:
			p.Status = int32(f.varint)
		case 3:
			p.IsRetrying = protowire.DecodeBool(f.varint)
		case 4:
			p.IsUsingSystemPairing = protowire.DecodeBool(f.varint)
		case 5:
			p.State = int32(f.varint)
		}
	}
	return p, nil
}

// DeviceInfo describes the sending device. It is exchanged in clear text
// before pairing.
type DeviceInfo struct {
	UniqueIdentifier            string
	Name                        string
	LocalizedModelName          string
	SystemBuildVersion          string
	ApplicationBundleIdentifier string
	ApplicationBundleVersion    string
	ProtocolVersion             int32
	LastSupportedMessageType    uint32
	SupportsSystemPairing       bool
	AllowsPairing               bool
	SystemMediaApplication      string
	SupportsACL                 bool
}

// MessageType implements Payload.
func (d *DeviceInfo) MessageType() Type { return TypeDeviceInfo }

func (d *DeviceInfo) appendWire(b []byte) []byte {
	b = appendStringField(b, 1, d.UniqueIdentifier)
	b = appendStringField(b, 2, d.Name)
	b = appendStringField(b, 3, d.LocalizedModelName)
	b = appendStringField(b, 4, d.SystemBuildVersion)
	b = appendStringField(b, 5, d.ApplicationBundleIdentifier)
	b = appendStringField(b, 6, d.ApplicationBundleVersion)
	b = appendVarintField(b, 7, uint64(int64(d.ProtocolVersion)))
	b = appendVarintField(b, 8, uint64(d.LastSupportedMessageType))
	b = appendVarintField(b, 9, protowire.EncodeBool(d.SupportsSystemPairing))
	b = appendVarintField(b, 10, protowire.EncodeBool(d.AllowsPairing))
	b = appendStringField(b, 11, d.SystemMediaApplication)
	b = appendVarintField(b, 12, protowire.EncodeBool(d.SupportsACL))
	return b
}

func decodeDeviceInfo(data []byte) (Payload, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	d := &DeviceInfo{}
	for _, f := range fields {
		switch f.num {
		case 1:
			d.UniqueIdentifier = string(f.bytes)
		case 2:
			d.Name = string(f.bytes)
		case 3:
			d.LocalizedModelName = string(f.bytes)
		case 4:
			d.SystemBuildVersion = string(f.bytes)
		case 5:
			d.ApplicationBundleIdentifier = string(f.bytes)
		case 6:
			d.ApplicationBundleVersion = string(f.bytes)
		case 7:
			d.ProtocolVersion = int32(f.varint)
		case 8:
			d.LastSupportedMessageType = uint32(f.varint)
		case 9:
			d.SupportsSystemPairing = protowire.DecodeBool(f.varint)
		case 10:
			d.AllowsPairing = protowire.DecodeBool(f.varint)
		case 11:
			d.SystemMediaApplication = string(f.bytes)
		case 12:
			d.SupportsACL = protowire.DecodeBool(f.varint)
		}
	}
	return d, nil
}

// SendCommand asks the receiver to perform a remote control command.
// Options are passed through undecoded.
type SendCommand struct {
	Command Command
	Options []byte
}

// MessageType implements Payload.
func (c *SendCommand) MessageType() Type { return TypeSendCommand }

func (c *SendCommand) appendWire(b []byte) []byte {
	b = appendVarintField(b, 1, uint64(int64(c.Command)))
	if len(c.Options) > 0 {
		b = appendBytesField(b, 2, c.Options)
	}
	return b
}

func decodeSendCommand(data []byte) (Payload, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	c := &SendCommand{}
	for _, f := range fields {
		switch f.num {
		case 1:
			c.Command = Command(int32(f.varint))
		case 2:
			c.Options = append([]byte(nil), f.bytes...)
		}
	}
	return c, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
