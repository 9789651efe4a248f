package transport

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-varint"
)

// DefaultMaxFrameSize bounds the length prefix accepted by a Framer.
const DefaultMaxFrameSize = 1 << 20

// Framer reassembles length-prefixed frames from stream chunks.
type Framer struct {
	buf []byte
	max uint64
}

// NewFramer returns a Framer rejecting frames larger than maxSize bytes.
// If maxSize is zero, DefaultMaxFrameSize is used.
func NewFramer(maxSize int) *Framer {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Framer{max: uint64(maxSize)}
}

// Feed appends a chunk read from the stream.
func (f *Framer) Feed(chunk []byte) {
	f.buf = append(f.buf, chunk...)
}

// Buffered returns the number of bytes not yet consumed.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Next returns the next complete frame body. If the buffer does not hold a
// complete frame it returns ErrFrameIncomplete and consumes nothing.
func (f *Framer) Next() ([]byte, error) {
	if len(f.buf) == 0 {
		return nil, ErrFrameIncomplete
	}

	length, n, err := varint.FromUvarint(f.buf)
	if err != nil {
		if errors.Is(err, varint.ErrUnderflow) {
			return nil, ErrFrameIncomplete
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidLength, err)
	}
	if length > f.max {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	if uint64(len(f.buf)-n) < length {
		return nil, ErrFrameIncomplete
	}

	end := n + int(length)
	frame := make([]byte, length)
	copy(frame, f.buf[n:end])

	f.buf = f.buf[end:]
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frame, nil
}

// AppendFrame appends payload with its length prefix to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = append(dst, varint.ToUvarint(uint64(len(payload)))...)
	return append(dst, payload...)
}
