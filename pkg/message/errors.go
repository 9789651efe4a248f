package message

import "errors"

// Envelope errors.
var (
	ErrNilMessage     = errors.New("message: nil message")
	ErrNoPayloadField = errors.New("message: no payload field for type")
	ErrPayloadType    = errors.New("message: payload does not match message type")
	ErrMalformed      = errors.New("message: malformed envelope")
)
