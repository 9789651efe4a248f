// Package credentials holds the long-term pairing records and the live
// session state derived from them.
//
// A controller keeps one Credentials per paired device. It is created by
// pair setup, refreshed with session keys by pair verify, and consulted by
// the transport on every encrypted send or receive. Accessories keep an
// Identity for themselves and a Peer for every paired controller.
package credentials
