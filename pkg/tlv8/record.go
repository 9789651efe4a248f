package tlv8

// Record is a decoded TLV8 buffer: a mapping from tag to value that
// remembers the order in which tags were first seen.
type Record struct {
	values map[Tag][]byte
	order  []Tag
}

// NewRecord builds a Record from items, concatenating repeated tags.
func NewRecord(items ...Item) Record {
	r := Record{values: make(map[Tag][]byte)}
	for _, it := range items {
		prev, seen := r.values[it.Tag]
		if !seen {
			r.order = append(r.order, it.Tag)
		}
		r.values[it.Tag] = append(prev, it.Value...)
	}
	return r
}

// Get returns the value for tag and whether it was present.
func (r Record) Get(tag Tag) ([]byte, bool) {
	v, ok := r.values[tag]
	return v, ok
}

// Has reports whether tag is present.
func (r Record) Has(tag Tag) bool {
	_, ok := r.values[tag]
	return ok
}

// Byte returns the first byte of the value for tag.
// It reports false if the tag is absent or empty.
func (r Record) Byte(tag Tag) (byte, bool) {
	v, ok := r.values[tag]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// Uint returns the value for tag as a little-endian integer of up to 8 bytes.
func (r Record) Uint(tag Tag) (uint64, bool) {
	v, ok := r.values[tag]
	if !ok || len(v) == 0 || len(v) > 8 {
		return 0, false
	}
	var n uint64
	for i := len(v) - 1; i >= 0; i-- {
		n = n<<8 | uint64(v[i])
	}
	return n, true
}

// Tags returns the tags in first-encounter order.
func (r Record) Tags() []Tag {
	out := make([]Tag, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of distinct tags.
func (r Record) Len() int {
	return len(r.order)
}

// Items returns the record as items in first-encounter order.
func (r Record) Items() []Item {
	out := make([]Item, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, Item{Tag: t, Value: r.values[t]})
	}
	return out
}

// Encode serializes the record.
func (r Record) Encode() []byte {
	return Encode(r.Items()...)
}
