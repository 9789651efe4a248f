// Package transport carries MediaRemote protocol messages over a byte
// stream.
//
// Each message is framed with an unsigned varint length prefix. After pair
// verify the frame body is sealed with the session cipher; the prefix is
// always clear text.
//
//	+----------------+---------------------------+
//	| uvarint length | envelope (or sealed body) |
//	+----------------+---------------------------+
//
// A Conn owns one stream. It runs a read loop that reassembles frames,
// decrypts them once a cipher is installed and dispatches the decoded
// messages in this order:
//
//  1. a pending Request waiting on the message identifier
//  2. the pairing handler, for CryptoPairing messages
//  3. a pending Request waiting on the message type (CryptoPairing and
//     DeviceInfo carry no identifier in replies)
//  4. subscribers, in registration order
//
// A message matching none of these is logged and dropped.
package transport
