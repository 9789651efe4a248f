package tlv8

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies a TLV8 entry.
type Tag byte

// Tags used by the pairing protocol.
const (
	TagMethod        Tag = 0x00
	TagIdentifier    Tag = 0x01
	TagSalt          Tag = 0x02
	TagPublicKey     Tag = 0x03
	TagProof         Tag = 0x04
	TagEncryptedData Tag = 0x05
	TagSequence      Tag = 0x06
	TagErrorCode     Tag = 0x07
	TagBackOff       Tag = 0x08
	TagSignature     Tag = 0x0A

	// TagMFiCertificate shares its value with TagSignature. Peers in the
	// field send both under 0x0A, so the collision is kept as-is.
	TagMFiCertificate Tag = 0x0A
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagMethod:
		return "Method"
	case TagIdentifier:
		return "Identifier"
	case TagSalt:
		return "Salt"
	case TagPublicKey:
		return "PublicKey"
	case TagProof:
		return "Proof"
	case TagEncryptedData:
		return "EncryptedData"
	case TagSequence:
		return "Sequence"
	case TagErrorCode:
		return "ErrorCode"
	case TagBackOff:
		return "BackOff"
	case TagSignature:
		return "Signature"
	default:
		return fmt.Sprintf("Tag(0x%02x)", byte(t))
	}
}

// maxFragment is the largest value a single entry can carry.
const maxFragment = 255

// Item is one tag/value pair to encode.
type Item struct {
	Tag   Tag
	Value []byte
}

// Bytes returns an item carrying a raw byte value.
func Bytes(tag Tag, value []byte) Item {
	return Item{Tag: tag, Value: value}
}

// Byte returns an item carrying a single byte.
func Byte(tag Tag, value byte) Item {
	return Item{Tag: tag, Value: []byte{value}}
}

// String returns an item carrying the UTF-8 bytes of value.
func String(tag Tag, value string) Item {
	return Item{Tag: tag, Value: []byte(value)}
}

// Uint returns an item carrying value as a minimal little-endian integer.
// Zero encodes as a single zero byte.
func Uint(tag Tag, value uint64) Item {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	n := 8
	for n > 1 && buf[n-1] == 0 {
		n--
	}
	return Item{Tag: tag, Value: buf[:n]}
}

// Encode serializes items in order. Values over 255 bytes are fragmented
// into consecutive entries with the same tag.
func Encode(items ...Item) []byte {
	size := 0
	for _, it := range items {
		frags := (len(it.Value) + maxFragment - 1) / maxFragment
		if frags == 0 {
			frags = 1
		}
		size += 2*frags + len(it.Value)
	}

	out := make([]byte, 0, size)
	for _, it := range items {
		v := it.Value
		if len(v) == 0 {
			out = append(out, byte(it.Tag), 0)
			continue
		}
		for len(v) > 0 {
			n := len(v)
			if n > maxFragment {
				n = maxFragment
			}
			out = append(out, byte(it.Tag), byte(n))
			out = append(out, v[:n]...)
			v = v[n:]
		}
	}
	return out
}

// DecodeError reports a truncated TLV8 buffer.
type DecodeError struct {
	// Offset is the position of the entry header that could not be satisfied.
	Offset int
	// Need is the number of bytes the entry requires after its header.
	Need int
	// Have is the number of bytes remaining after the header.
	Have int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tlv8: truncated entry at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// Decode parses data into a Record. Entries that repeat a tag are appended
// to the value already collected for that tag. Unknown tags are kept.
func Decode(data []byte) (Record, error) {
	r := Record{values: make(map[Tag][]byte)}
	pos := 0
	for pos < len(data) {
		if len(data)-pos < 2 {
			return Record{}, &DecodeError{Offset: pos, Need: 1, Have: 0}
		}
		tag := Tag(data[pos])
		n := int(data[pos+1])
		start := pos + 2
		if len(data)-start < n {
			return Record{}, &DecodeError{Offset: pos, Need: n, Have: len(data) - start}
		}

		prev, seen := r.values[tag]
		if !seen {
			r.order = append(r.order, tag)
			prev = make([]byte, 0, n)
		}
		r.values[tag] = append(prev, data[start:start+n]...)
		pos = start + n
	}
	return r, nil
}
