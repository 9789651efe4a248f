package crypto

import "encoding/binary"

// Fixed nonces for the encrypted sub-TLVs of the pairing handshake.
const (
	NoncePairSetupM5  = "PS-Msg05"
	NoncePairSetupM6  = "PS-Msg06"
	NoncePairVerifyM2 = "PV-Msg02"
	NoncePairVerifyM3 = "PV-Msg03"
)

// CounterNonce returns the 8-byte little-endian nonce for message counter n.
func CounterNonce(n uint64) []byte {
	nonce := make([]byte, NonceSize)
	binary.LittleEndian.PutUint64(nonce, n)
	return nonce
}

// LiteralNonce returns the ASCII bytes of a fixed handshake nonce.
func LiteralNonce(s string) []byte {
	return []byte(s)
}
