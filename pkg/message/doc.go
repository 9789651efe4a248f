// Package message implements the MediaRemote protocol message envelope.
//
// Every frame on an MRP connection carries one envelope. The envelope holds
// the message type, an optional correlation identifier, an error code and a
// timestamp in fields 1 to 5. The type-specific payload is stored in an
// extension field, numbered 6 or above and fixed per type:
//
//	Type                  Field
//	SendCommand (1)        6
//	SendCommandResult (2)  7
//	SetState (4)           9
//	DeviceInfo (15)        20
//	ClientUpdatesConfig    21
//	CryptoPairing (34)     39
//
// Payloads for CryptoPairing, DeviceInfo and SendCommand are decoded into
// typed structs. All other payloads are kept as Raw bytes.
package message
