// Package storage persists pairing state: controller credentials keyed by
// device, the local long-term identity and, on the accessory side, the
// controllers that have paired with it.
package storage

import (
	"errors"

	"github.com/backkem/mediaremote/pkg/credentials"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrEmptyKey is returned for an empty device or peer identifier.
	ErrEmptyKey = errors.New("storage: empty key")
)

// Store is the persistence interface. Implementations return copies, so
// callers may modify returned values freely.
//
// Store satisfies pairing.PeerStore.
type Store interface {
	// SaveCredentials stores credentials for a paired device, replacing any
	// previous entry. Session keys are not stored.
	SaveCredentials(deviceUID string, creds *credentials.Credentials) error

	// LoadCredentials returns the credentials for deviceUID.
	LoadCredentials(deviceUID string) (*credentials.Credentials, error)

	// DeleteCredentials removes the credentials for deviceUID.
	DeleteCredentials(deviceUID string) error

	// ListCredentials returns the device identifiers with stored credentials.
	ListCredentials() ([]string, error)

	// SaveIdentity stores the local long-term identity.
	SaveIdentity(identity *credentials.Identity) error

	// LoadIdentity returns the local long-term identity.
	LoadIdentity() (*credentials.Identity, error)

	// SavePeer stores a paired controller.
	SavePeer(peer *credentials.Peer) error

	// LoadPeer returns the paired controller with the given identifier.
	LoadPeer(id []byte) (*credentials.Peer, error)

	// DeletePeer removes a paired controller.
	DeletePeer(id []byte) error

	// ListPeers returns all paired controllers.
	ListPeers() ([]*credentials.Peer, error)

	// Close releases the store.
	Close() error
}

// serialize returns the stored form of creds under deviceUID.
func serialize(deviceUID string, creds *credentials.Credentials) (string, error) {
	if deviceUID == "" {
		return "", ErrEmptyKey
	}
	c := creds.Clone()
	c.DeviceUID = deviceUID
	return c.String(), nil
}
