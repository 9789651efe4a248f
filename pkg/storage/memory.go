package storage

import (
	"sort"
	"sync"

	"github.com/backkem/mediaremote/pkg/credentials"
)

// Memory is an in-memory Store implementation.
// Useful for testing and development. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	creds    map[string]string // device UID -> serialized credentials
	identity *credentials.Identity
	peers    map[string]*credentials.Peer
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		creds: make(map[string]string),
		peers: make(map[string]*credentials.Peer),
	}
}

// SaveCredentials implements Store.
func (m *Memory) SaveCredentials(deviceUID string, creds *credentials.Credentials) error {
	record, err := serialize(deviceUID, creds)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[deviceUID] = record
	return nil
}

// LoadCredentials implements Store.
func (m *Memory) LoadCredentials(deviceUID string) (*credentials.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.creds[deviceUID]
	if !ok {
		return nil, ErrNotFound
	}
	return credentials.Parse(s)
}

// DeleteCredentials implements Store.
func (m *Memory) DeleteCredentials(deviceUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[deviceUID]; !ok {
		return ErrNotFound
	}
	delete(m.creds, deviceUID)
	return nil
}

// ListCredentials implements Store.
func (m *Memory) ListCredentials() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.creds))
	for uid := range m.creds {
		result = append(result, uid)
	}
	sort.Strings(result)
	return result, nil
}

// SaveIdentity implements Store.
func (m *Memory) SaveIdentity(identity *credentials.Identity) error {
	clone, err := credentials.NewIdentity(identity.ID, identity.Seed)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = clone
	return nil
}

// LoadIdentity implements Store.
func (m *Memory) LoadIdentity() (*credentials.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil, ErrNotFound
	}
	return credentials.NewIdentity(m.identity.ID, m.identity.Seed)
}

// SavePeer implements Store.
func (m *Memory) SavePeer(peer *credentials.Peer) error {
	if len(peer.ID) == 0 {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.peers[string(peer.ID)] = peer.Clone()
	return nil
}

// LoadPeer implements Store.
func (m *Memory) LoadPeer(id []byte) (*credentials.Peer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peer, ok := m.peers[string(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return peer.Clone(), nil
}

// DeletePeer implements Store.
func (m *Memory) DeletePeer(id []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.peers[string(id)]; !ok {
		return ErrNotFound
	}
	delete(m.peers, string(id))
	return nil
}

// ListPeers implements Store.
func (m *Memory) ListPeers() ([]*credentials.Peer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*credentials.Peer, 0, len(m.peers))
	for _, p := range m.peers {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return string(result[i].ID) < string(result[j].ID)
	})
	return result, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// Verify Memory implements Store.
var _ Store = (*Memory)(nil)
