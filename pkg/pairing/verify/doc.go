// Package verify implements pair verify: the repeatable exchange that
// derives fresh session keys from trust established by pair setup.
//
// Message flow:
//
//	Controller                               Accessory
//	    |                                        |
//	    |--- M1 (PublicKey) -------------------->|
//	    |<-- M2 (PublicKey, EncryptedData) ------|
//	    |--- M3 (EncryptedData) ---------------->|
//	    |<-- M4 (Sequence) ----------------------|
//	    |                                        |
//	 session keys                          session keys
//
// Both sides generate ephemeral X25519 keys. The encrypted payloads carry
// the sender's pairing identifier and an Ed25519 signature over
// ownEphemeral || ownIdentifier || peerEphemeral, checked against the
// long-term key learned during setup.
package verify
