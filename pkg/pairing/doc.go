// Package pairing orchestrates the pair setup and pair verify exchanges
// over a message transport.
//
// A Manager owns at most one handshake at a time. On the controller side,
// Setup and Verify drive the state machines from the calling goroutine and
// wait for each reply, with a timeout. On the accessory side, Deliver reacts
// to inbound handshake messages from the transport's read loop and sends the
// replies; an M1 always restarts the exchange.
//
// Before any sequence check, received messages are inspected for BackOff and
// ErrorCode entries, which abort the handshake. Messages with an unexpected
// sequence number are dropped.
package pairing
