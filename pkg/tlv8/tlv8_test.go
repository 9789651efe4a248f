package tlv8

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  []byte
	}{
		{
			name:  "single byte",
			items: []Item{Byte(TagSequence, 1)},
			want:  []byte{0x06, 0x01, 0x01},
		},
		{
			name:  "method and sequence",
			items: []Item{Byte(TagMethod, 0), Byte(TagSequence, 1)},
			want:  []byte{0x00, 0x01, 0x00, 0x06, 0x01, 0x01},
		},
		{
			name:  "empty value",
			items: []Item{Bytes(TagProof, nil)},
			want:  []byte{0x04, 0x00},
		},
		{
			name:  "string",
			items: []Item{String(TagIdentifier, "abc")},
			want:  []byte{0x01, 0x03, 'a', 'b', 'c'},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(tc.items...)
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Encode() = %x, want %x", got, tc.want)
			}
		})
	}
}

func TestEncodeFragments(t *testing.T) {
	value := make([]byte, 600)
	for i := range value {
		value[i] = byte(i)
	}

	data := Encode(Bytes(TagPublicKey, value))

	// 255 + 255 + 90 with a two byte header each.
	if len(data) != 606 {
		t.Fatalf("len(Encode()) = %d, want 606", len(data))
	}
	if data[0] != byte(TagPublicKey) || data[1] != 255 {
		t.Errorf("first fragment header = %x %x", data[0], data[1])
	}
	if data[257] != byte(TagPublicKey) || data[258] != 255 {
		t.Errorf("second fragment header = %x %x", data[257], data[258])
	}
	if data[514] != byte(TagPublicKey) || data[515] != 90 {
		t.Errorf("third fragment header = %x %x", data[514], data[515])
	}
}

func TestEncodeExactly255(t *testing.T) {
	data := Encode(Bytes(TagSalt, make([]byte, 255)))
	if len(data) != 257 {
		t.Errorf("len(Encode()) = %d, want 257", len(data))
	}
}

func TestRoundTrip(t *testing.T) {
	srp := make([]byte, 384)
	for i := range srp {
		srp[i] = byte(i * 7)
	}
	long := bytes.Repeat([]byte{0xAB}, 1000)

	items := []Item{
		Byte(TagSequence, 3),
		Bytes(TagPublicKey, srp),
		Bytes(TagProof, []byte{1, 2, 3}),
		Bytes(TagEncryptedData, long),
		Bytes(Tag(0x42), []byte("unknown")),
	}

	rec, err := Decode(Encode(items...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for _, it := range items {
		got, ok := rec.Get(it.Tag)
		if !ok {
			t.Fatalf("tag %s missing", it.Tag)
		}
		if !bytes.Equal(got, it.Value) {
			t.Errorf("tag %s = %d bytes, want %d bytes", it.Tag, len(got), len(it.Value))
		}
	}

	tags := rec.Tags()
	want := []Tag{TagSequence, TagPublicKey, TagProof, TagEncryptedData, Tag(0x42)}
	if len(tags) != len(want) {
		t.Fatalf("Tags() = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("Tags()[%d] = %s, want %s", i, tags[i], want[i])
		}
	}
}

func TestDecodeConcatenatesRepeatedTags(t *testing.T) {
	data := []byte{
		0x05, 0x02, 'a', 'b',
		0x06, 0x01, 0x02,
		0x05, 0x01, 'c',
	}

	rec, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, _ := rec.Get(TagEncryptedData)
	if string(got) != "abc" {
		t.Errorf("EncryptedData = %q, want %q", got, "abc")
	}
	if seq, _ := rec.Byte(TagSequence); seq != 2 {
		t.Errorf("Sequence = %d, want 2", seq)
	}
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"missing length", []byte{0x06}},
		{"short value", []byte{0x06, 0x04, 0x01, 0x02}},
		{"second entry short", []byte{0x06, 0x01, 0x01, 0x03, 0x10}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode() error = %v, want *DecodeError", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	rec, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) failed: %v", err)
	}
	if rec.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rec.Len())
	}
}

func TestUint(t *testing.T) {
	tests := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{0x0102, []byte{0x02, 0x01}},
		{300, []byte{0x2c, 0x01}},
	}

	for _, tc := range tests {
		it := Uint(TagBackOff, tc.in)
		if !bytes.Equal(it.Value, tc.want) {
			t.Errorf("Uint(%d) = %x, want %x", tc.in, it.Value, tc.want)
		}
		rec, err := Decode(Encode(it))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got, _ := rec.Uint(TagBackOff); got != tc.in {
			t.Errorf("Record.Uint() = %d, want %d", got, tc.in)
		}
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(String(TagIdentifier, "ab"), Byte(TagSequence, 5), String(TagIdentifier, "cd"))
	id, _ := rec.Get(TagIdentifier)
	if string(id) != "abcd" {
		t.Errorf("Identifier = %q, want %q", id, "abcd")
	}
	if !rec.Has(TagSequence) || rec.Has(TagProof) {
		t.Error("Has() reported wrong presence")
	}
}
