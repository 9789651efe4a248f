// Package setup implements pair setup: the one-time SRP exchange that
// establishes long-term Ed25519 trust between a controller and an
// accessory.
//
// Message flow:
//
//	Controller                            Accessory
//	    |                                     |
//	    |--- M1 (Method, Sequence) ---------->|
//	    |<-- M2 (Salt, PublicKey B) ----------|  PIN displayed
//	    |--- M3 (PublicKey A, Proof) -------->|
//	    |<-- M4 (Proof) ----------------------|
//	    |--- M5 (EncryptedData) ------------->|
//	    |<-- M6 (EncryptedData) --------------|
//	    |                                     |
//	  Credentials                            Peer
//
// SRP uses the 3072-bit group from RFC 5054 with SHA-512, the username
// "Pair-Setup", and x = H(s | H(I | ":" | P)). The SRP session key seeds
// HKDF-SHA512 derivations for the M5/M6 encryption key and for the
// signature pre-images of each side.
package setup
