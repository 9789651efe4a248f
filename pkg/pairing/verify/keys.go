package verify

import (
	"github.com/backkem/mediaremote/pkg/crypto"
)

// HKDF salt and info literals.
const (
	encryptSalt = "Pair-Verify-Encrypt-Salt"
	encryptInfo = "Pair-Verify-Encrypt-Info"

	sessionSalt = "MediaRemote-Salt"
	readInfo    = "MediaRemote-Read-Encryption-Key"
	writeInfo   = "MediaRemote-Write-Encryption-Key"
)

// SessionKeys are the transport keys produced by a successful verify.
// The controller's write key is the accessory's read key and the reverse.
type SessionKeys struct {
	Read  []byte
	Write []byte
}

// Wipe clears both keys.
func (k *SessionKeys) Wipe() {
	crypto.Wipe(k.Read)
	crypto.Wipe(k.Write)
}

func deriveEncryptKey(shared []byte) ([]byte, error) {
	return crypto.DeriveKey(shared, encryptSalt, encryptInfo)
}

// deriveSessionKeys returns the keys as seen by the controller. The
// accessory swaps them.
func deriveSessionKeys(shared []byte, controller bool) (*SessionKeys, error) {
	read, err := crypto.DeriveKey(shared, sessionSalt, readInfo)
	if err != nil {
		return nil, err
	}
	write, err := crypto.DeriveKey(shared, sessionSalt, writeInfo)
	if err != nil {
		return nil, err
	}
	if controller {
		return &SessionKeys{Read: read, Write: write}, nil
	}
	return &SessionKeys{Read: write, Write: read}, nil
}
