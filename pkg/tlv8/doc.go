// Package tlv8 implements the TLV8 encoding used by the pairing handshake.
//
// Each entry is a one-byte tag, a one-byte length and up to 255 bytes of
// value. Values longer than 255 bytes are split into consecutive fragments
// that repeat the same tag; a decoder concatenates fragments that share a
// tag in the order they are encountered.
//
//	+-----+-----+----------------+-----+-----+--------  ...
//	| tag | len | value (<=255)  | tag | len | value    ...
//	+-----+-----+----------------+-----+-----+--------  ...
package tlv8
