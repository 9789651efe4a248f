package transport

import "errors"

// Transport errors.
var (
	ErrClosed          = errors.New("transport: closed")
	ErrPeerClosed      = errors.New("transport: connection closed by peer")
	ErrAlreadyStarted  = errors.New("transport: already started")
	ErrNotStarted      = errors.New("transport: not started")
	ErrNoHandler       = errors.New("transport: handler required")
	ErrInvalidAddress  = errors.New("transport: invalid address")
	ErrTimeout         = errors.New("transport: request timeout")
	ErrFrameIncomplete = errors.New("transport: frame incomplete")
	ErrFrameTooLarge   = errors.New("transport: frame exceeds maximum size")
	ErrInvalidLength   = errors.New("transport: invalid length prefix")
)
