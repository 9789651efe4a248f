package pairing

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/pairing/verify"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

type memoryPeers struct {
	mu    sync.Mutex
	peers map[string]*credentials.Peer
}

func newMemoryPeers() *memoryPeers {
	return &memoryPeers{peers: make(map[string]*credentials.Peer)}
}

func (p *memoryPeers) LoadPeer(id []byte) (*credentials.Peer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", messages.ErrUnknownPeer, id)
	}
	return peer.Clone(), nil
}

func (p *memoryPeers) SavePeer(peer *credentials.Peer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[string(peer.ID)] = peer.Clone()
	return nil
}

// testPair wires a controller Manager and an accessory Manager back to back.
type testPair struct {
	controller *Manager
	accessory  *Manager
	identity   *credentials.Identity
	peers      *memoryPeers

	pins chan string

	mu       sync.Mutex
	accKeys  *verify.SessionKeys
	accPeer  *credentials.Peer
	accErrs  []error
	paired   []*credentials.Peer
	modesOut []Mode
}

func newTestPair(t *testing.T, pin string) *testPair {
	t.Helper()

	identity, err := credentials.GenerateIdentity(rand.Reader, "accessory-1")
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	p := &testPair{
		identity: identity,
		peers:    newMemoryPeers(),
		pins:     make(chan string, 4),
	}

	p.controller, err = NewManager(ManagerConfig{
		Sender: SenderFunc(func(ctx context.Context, data []byte, mode Mode) error {
			p.mu.Lock()
			p.modesOut = append(p.modesOut, mode)
			p.mu.Unlock()
			p.accessory.Deliver(ctx, data)
			return nil
		}),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager(controller) failed: %v", err)
	}

	p.accessory, err = NewManager(ManagerConfig{
		Sender: SenderFunc(func(ctx context.Context, data []byte, mode Mode) error {
			p.controller.Deliver(ctx, data)
			return nil
		}),
		Identity: identity,
		Peers:    p.peers,
		PIN:      pin,
		Callbacks: Callbacks{
			OnPIN: func(code string) { p.pins <- code },
			OnPaired: func(peer *credentials.Peer) {
				p.mu.Lock()
				p.paired = append(p.paired, peer)
				p.mu.Unlock()
			},
			OnSessionKeys: func(peer *credentials.Peer, keys *verify.SessionKeys) {
				p.mu.Lock()
				p.accPeer, p.accKeys = peer, keys
				p.mu.Unlock()
			},
			OnError: func(err error, mode Mode) {
				p.mu.Lock()
				p.accErrs = append(p.accErrs, err)
				p.mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("NewManager(accessory) failed: %v", err)
	}
	return p
}

func (p *testPair) displayedPIN(ctx context.Context) (string, error) {
	select {
	case pin := <-p.pins:
		return pin, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSetupThenVerify(t *testing.T) {
	p := newTestPair(t, "")
	ctx := context.Background()

	creds, err := p.controller.Setup(ctx, nil, "device-uid", p.displayedPIN)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if !bytes.Equal(creds.RemoteID, p.identity.ID) {
		t.Errorf("creds.RemoteID = %s, want %s", creds.RemoteID, p.identity.ID)
	}
	if creds.DeviceUID != "device-uid" {
		t.Errorf("creds.DeviceUID = %q", creds.DeviceUID)
	}
	if len(p.paired) != 1 || !bytes.Equal(p.paired[0].ID, creds.LocalID) {
		t.Fatalf("accessory paired = %v, want controller %s", p.paired, creds.LocalID)
	}
	if _, err := p.peers.LoadPeer(creds.LocalID); err != nil {
		t.Errorf("controller not stored: %v", err)
	}

	keys, err := p.controller.Verify(ctx, creds)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if p.accKeys == nil {
		t.Fatal("accessory did not install keys")
	}
	if !bytes.Equal(keys.Write, p.accKeys.Read) || !bytes.Equal(keys.Read, p.accKeys.Write) {
		t.Error("session keys are not mirrored")
	}
	if !bytes.Equal(p.accPeer.ID, creds.LocalID) {
		t.Errorf("accessory verified %s, want %s", p.accPeer.ID, creds.LocalID)
	}
	if len(p.accErrs) != 0 {
		t.Errorf("accessory errors: %v", p.accErrs)
	}

	// Setup messages were sent as setup and verify messages as verify.
	want := []Mode{ModeSetup, ModeSetup, ModeSetup, ModeVerify, ModeVerify}
	if len(p.modesOut) != len(want) {
		t.Fatalf("modes = %v, want %v", p.modesOut, want)
	}
	for i := range want {
		if p.modesOut[i] != want[i] {
			t.Errorf("mode[%d] = %s, want %s", i, p.modesOut[i], want[i])
		}
	}
	if p.controller.Active() || p.accessory.Active() {
		t.Error("managers still active after completion")
	}
}

func TestSetupWrongPIN(t *testing.T) {
	p := newTestPair(t, "1234")

	_, err := p.controller.Setup(context.Background(), nil, "uid", func(ctx context.Context) (string, error) {
		<-p.pins
		return "9999", nil
	})
	if !errors.Is(err, messages.ErrProofMismatch) {
		t.Fatalf("Setup error = %v, want ErrProofMismatch", err)
	}
	if len(p.accErrs) != 1 || !errors.Is(p.accErrs[0], messages.ErrProofMismatch) {
		t.Errorf("accessory errors = %v, want ErrProofMismatch", p.accErrs)
	}
	if len(p.paired) != 0 {
		t.Error("accessory stored a controller after a wrong PIN")
	}
}

func TestVerifyUnknownController(t *testing.T) {
	p := newTestPair(t, "")
	ctrl, _ := credentials.GenerateIdentity(rand.Reader, "")
	creds := credentials.New("uid", p.identity.ID, ctrl.ID, p.identity.PublicKey(), ctrl.Seed)

	_, err := p.controller.Verify(context.Background(), creds)
	var pe *messages.PeerError
	if !errors.As(err, &pe) || pe.Code != messages.ErrorAuthentication {
		t.Fatalf("Verify error = %v, want Authentication PeerError", err)
	}
	if p.accKeys != nil {
		t.Error("accessory installed keys for an unknown controller")
	}
	if len(p.accErrs) != 1 || !errors.Is(p.accErrs[0], messages.ErrUnknownPeer) {
		t.Errorf("accessory errors = %v, want ErrUnknownPeer", p.accErrs)
	}
}

func TestSetupBackOff(t *testing.T) {
	var m *Manager
	m, _ = NewManager(ManagerConfig{
		Sender: SenderFunc(func(ctx context.Context, data []byte, mode Mode) error {
			m.Deliver(ctx, tlv8.Encode(
				tlv8.Byte(tlv8.TagSequence, messages.M2),
				tlv8.Uint(tlv8.TagBackOff, 120),
			))
			return nil
		}),
	})

	asked := false
	_, err := m.Setup(context.Background(), nil, "uid", func(context.Context) (string, error) {
		asked = true
		return "0000", nil
	})

	var boe *messages.BackOffError
	if !errors.As(err, &boe) || boe.Seconds != 120 {
		t.Fatalf("Setup error = %v, want BackOffError(120)", err)
	}
	if asked {
		t.Error("PIN requested after BackOff")
	}
}

func TestAwaitDropsSequenceMismatch(t *testing.T) {
	var m *Manager
	m, _ = NewManager(ManagerConfig{
		Sender: SenderFunc(func(ctx context.Context, data []byte, mode Mode) error {
			m.Deliver(ctx, tlv8.Encode(tlv8.Byte(tlv8.TagSequence, messages.M4)))
			m.Deliver(ctx, messages.ErrorReply(messages.M2, messages.ErrorBusy))
			return nil
		}),
	})

	_, err := m.Setup(context.Background(), nil, "uid", nil)
	var pe *messages.PeerError
	if !errors.As(err, &pe) || pe.Code != messages.ErrorBusy {
		t.Fatalf("Setup error = %v, want Busy PeerError", err)
	}
}

func TestTimeout(t *testing.T) {
	m, _ := NewManager(ManagerConfig{
		Sender:  SenderFunc(func(context.Context, []byte, Mode) error { return nil }),
		Timeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := m.Setup(context.Background(), nil, "uid", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Setup error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout took too long")
	}
	if m.Active() {
		t.Error("manager still active after timeout")
	}
}

func TestHandshakeInProgress(t *testing.T) {
	started := make(chan struct{})
	m, _ := NewManager(ManagerConfig{
		Sender: SenderFunc(func(context.Context, []byte, Mode) error {
			close(started)
			return nil
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Setup(ctx, nil, "uid", nil)
		done <- err
	}()
	<-started

	if _, err := m.Setup(context.Background(), nil, "uid", nil); !errors.Is(err, ErrHandshakeInProgress) {
		t.Errorf("second Setup error = %v, want ErrHandshakeInProgress", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Setup error = %v, want context.Canceled", err)
	}
}

func TestAccessoryRestartsOnM1(t *testing.T) {
	p := newTestPair(t, "2468")
	ctx := context.Background()

	// A controller that starts setup and walks away.
	p.accessory.Deliver(ctx, tlv8.Encode(
		tlv8.Byte(tlv8.TagMethod, byte(messages.MethodPairSetup)),
		tlv8.Byte(tlv8.TagSequence, messages.M1),
	))
	<-p.pins
	if !p.accessory.Active() {
		t.Fatal("accessory not active after M1")
	}

	creds, err := p.controller.Setup(ctx, nil, "uid", p.displayedPIN)
	if err != nil {
		t.Fatalf("Setup after abandoned attempt failed: %v", err)
	}
	if _, err := p.controller.Verify(ctx, creds); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}
