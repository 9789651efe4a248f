package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/pairing/setup"
	"github.com/backkem/mediaremote/pkg/pairing/verify"
	"github.com/backkem/mediaremote/pkg/tlv8"
	"github.com/pion/logging"
)

// DefaultTimeout bounds a whole handshake when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

// inboxSize is the number of handshake messages buffered for a waiting
// controller.
const inboxSize = 8

// Errors returned by the Manager.
var (
	ErrTimeout             = errors.New("pairing: handshake timeout")
	ErrHandshakeInProgress = errors.New("pairing: handshake already in progress")
	ErrNoSender            = errors.New("pairing: no sender configured")
	ErrCanceled            = errors.New("pairing: handshake canceled")
	ErrNoPeerStore         = errors.New("pairing: peer store required for accessory role")
)

// Mode identifies the handshake carried by a message.
type Mode int

const (
	ModeSetup Mode = iota
	ModeVerify
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSetup:
		return "Setup"
	case ModeVerify:
		return "Verify"
	default:
		return "Unknown"
	}
}

// Sender transmits one handshake message to the peer.
type Sender interface {
	SendPairingData(ctx context.Context, data []byte, mode Mode) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, data []byte, mode Mode) error

// SendPairingData calls f.
func (f SenderFunc) SendPairingData(ctx context.Context, data []byte, mode Mode) error {
	return f(ctx, data, mode)
}

// PINFunc supplies the setup code shown on the accessory. It is called
// after the accessory has answered M1.
type PINFunc func(ctx context.Context) (string, error)

// PeerStore persists the controllers an accessory has paired with.
type PeerStore interface {
	LoadPeer(id []byte) (*credentials.Peer, error)
	SavePeer(peer *credentials.Peer) error
}

// Callbacks provides callback functions for accessory-side events.
type Callbacks struct {
	// OnPIN is called with the setup code to display when a controller
	// starts pair setup.
	OnPIN func(code string)

	// OnPaired is called after pair setup stored a new controller.
	OnPaired func(peer *credentials.Peer)

	// OnSessionKeys is called after M4 of pair verify has been sent. The
	// transport must switch to the keys before handling the next message.
	OnSessionKeys func(peer *credentials.Peer, keys *verify.SessionKeys)

	// OnError is called when an accessory handshake fails.
	OnError func(err error, mode Mode)
}

// ManagerConfig configures a pairing Manager.
type ManagerConfig struct {
	// Sender transmits handshake messages. Required.
	Sender Sender

	// Identity is the accessory's long-term identity. Setting it enables
	// the accessory role.
	Identity *credentials.Identity

	// Peers stores paired controllers. Required for the accessory role.
	Peers PeerStore

	// PIN fixes the accessory setup code. If empty, a random code is
	// generated for each attempt.
	PIN string

	// Callbacks for accessory events.
	Callbacks Callbacks

	// Timeout bounds controller handshakes without a context deadline.
	// If zero, DefaultTimeout is used.
	Timeout time.Duration

	// Rand is the random source for setup codes. If nil, crypto/rand is used.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Manager runs pairing handshakes for one connection.
type Manager struct {
	config ManagerConfig
	log    logging.LeveledLogger

	inbox chan []byte

	mu           sync.Mutex
	waiting      bool // controller handshake in progress
	setupAcc     *setup.Accessory
	verifyAcc    *verify.Accessory
	accessoryRun Mode
}

// NewManager creates a pairing Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Sender == nil {
		return nil, ErrNoSender
	}
	if config.Identity != nil && config.Peers == nil {
		return nil, ErrNoPeerStore
	}
	if config.PIN != "" {
		if err := setup.ValidateCode(config.PIN); err != nil {
			return nil, err
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Rand == nil {
		config.Rand = rand.Reader
	}

	m := &Manager{
		config: config,
		inbox:  make(chan []byte, inboxSize),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("pairing")
	}
	return m, nil
}

// Active reports whether a handshake is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting || m.setupAcc != nil || m.verifyAcc != nil
}

// Deliver hands an inbound handshake message to the Manager. It is called
// from the transport read loop and never blocks on the network for the
// controller role.
func (m *Manager) Deliver(ctx context.Context, data []byte) {
	m.mu.Lock()
	waiting := m.waiting
	m.mu.Unlock()

	if waiting {
		select {
		case m.inbox <- data:
		default:
			if m.log != nil {
				m.log.Warn("handshake inbox full, dropping message")
			}
		}
		return
	}

	if m.config.Identity != nil {
		m.respond(ctx, data)
		return
	}

	if m.log != nil {
		m.log.Debug("dropping handshake message with no active handshake")
	}
}

// Setup runs pair setup as the controller. identity is the controller's
// long-term identity; if nil a new one is generated. deviceUID is stored in
// the returned credentials.
func (m *Manager) Setup(ctx context.Context, identity *credentials.Identity, deviceUID string, pin PINFunc) (*credentials.Credentials, error) {
	if identity == nil {
		var err error
		if identity, err = credentials.GenerateIdentity(m.config.Rand, ""); err != nil {
			return nil, err
		}
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	if m.log != nil {
		m.log.Infof("starting pair setup with %s", deviceUID)
	}

	c, err := setup.NewController(identity)
	if err != nil {
		return nil, err
	}

	m1, err := c.Start()
	if err != nil {
		return nil, err
	}
	m2, err := m.exchange(ctx, m1, messages.M2, ModeSetup)
	if err != nil {
		return nil, fmt.Errorf("setup M2: %w", err)
	}

	code, err := pin(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup PIN: %w", err)
	}

	m3, err := c.HandleM2(m2, code)
	if err != nil {
		return nil, fmt.Errorf("setup M2: %w", err)
	}
	m4, err := m.exchange(ctx, m3, messages.M4, ModeSetup)
	if err != nil {
		var pe *messages.PeerError
		if errors.As(err, &pe) && pe.Code == messages.ErrorAuthentication {
			return nil, fmt.Errorf("setup M4: %w: %w", messages.ErrProofMismatch, err)
		}
		return nil, fmt.Errorf("setup M4: %w", err)
	}

	m5, err := c.HandleM4(m4)
	if err != nil {
		return nil, fmt.Errorf("setup M4: %w", err)
	}
	m6, err := m.exchange(ctx, m5, messages.M6, ModeSetup)
	if err != nil {
		return nil, fmt.Errorf("setup M6: %w", err)
	}

	result, err := c.HandleM6(m6)
	if err != nil {
		return nil, fmt.Errorf("setup M6: %w", err)
	}

	if m.log != nil {
		m.log.Infof("pair setup complete, device identifier %s", result.PeerID)
	}
	return c.Credentials(deviceUID, result), nil
}

// Verify runs pair verify as the controller and returns the session keys.
// The caller installs them with creds.SetSessionKeys and on the transport.
func (m *Manager) Verify(ctx context.Context, creds *credentials.Credentials) (*verify.SessionKeys, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	if m.log != nil {
		m.log.Infof("starting pair verify with %s", creds.DeviceUID)
	}

	c, err := verify.NewController(creds)
	if err != nil {
		return nil, err
	}

	m1, err := c.Start()
	if err != nil {
		return nil, err
	}
	m2, err := m.exchange(ctx, m1, messages.M2, ModeVerify)
	if err != nil {
		return nil, fmt.Errorf("verify M2: %w", err)
	}

	m3, err := c.HandleM2(m2)
	if err != nil {
		return nil, fmt.Errorf("verify M2: %w", err)
	}
	m4, err := m.exchange(ctx, m3, messages.M4, ModeVerify)
	if err != nil {
		return nil, fmt.Errorf("verify M4: %w", err)
	}

	keys, err := c.HandleM4(m4)
	if err != nil {
		return nil, fmt.Errorf("verify M4: %w", err)
	}

	if m.log != nil {
		m.log.Info("pair verify complete")
	}
	return keys, nil
}

// Cancel aborts a waiting controller handshake.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiting {
		select {
		case m.inbox <- nil:
		default:
		}
	}
	m.setupAcc = nil
	m.verifyAcc = nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, m.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiting {
		return ErrHandshakeInProgress
	}
	m.waiting = true

	// Discard anything left over from an earlier attempt.
	for {
		select {
		case <-m.inbox:
		default:
			return nil
		}
	}
}

func (m *Manager) end() {
	m.mu.Lock()
	m.waiting = false
	m.mu.Unlock()
}

// exchange sends data and waits for the reply with sequence seq.
func (m *Manager) exchange(ctx context.Context, data []byte, seq byte, mode Mode) ([]byte, error) {
	if err := m.config.Sender.SendPairingData(ctx, data, mode); err != nil {
		return nil, err
	}
	return m.await(ctx, seq)
}

// await returns the next inbound message with sequence seq. Messages with
// other sequence numbers are dropped; status entries end the wait.
func (m *Manager) await(ctx context.Context, seq byte) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case data := <-m.inbox:
			if data == nil {
				return nil, ErrCanceled
			}
			_, err := messages.Expect(data, seq)
			if errors.Is(err, messages.ErrSequenceMismatch) {
				if m.log != nil {
					m.log.Debugf("dropping handshake message, waiting for M%d", seq)
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			return data, nil
		}
	}
}

// respond runs the accessory role for one inbound message.
func (m *Manager) respond(ctx context.Context, data []byte) {
	rec, err := tlv8.Decode(data)
	if err != nil {
		m.report(fmt.Errorf("%w: %v", messages.ErrInvalidMessage, err), m.currentMode())
		return
	}

	if seq, _ := messages.Sequence(rec); seq == messages.M1 {
		m.restart(ctx, rec, data)
		return
	}

	m.mu.Lock()
	setupAcc, verifyAcc := m.setupAcc, m.verifyAcc
	m.mu.Unlock()

	switch {
	case setupAcc != nil:
		m.continueSetup(ctx, setupAcc, data)
	case verifyAcc != nil:
		m.continueVerify(ctx, verifyAcc, data)
	default:
		if m.log != nil {
			m.log.Debug("dropping handshake message with no active handshake")
		}
	}
}

// restart begins a new accessory handshake. M1 with a Method entry is
// pair setup; M1 with only a public key is pair verify.
func (m *Manager) restart(ctx context.Context, rec tlv8.Record, data []byte) {
	method, hasMethod := rec.Byte(tlv8.TagMethod)
	isVerify := rec.Has(tlv8.TagPublicKey) && (!hasMethod || messages.Method(method) == messages.MethodPairVerify)

	m.mu.Lock()
	m.setupAcc = nil
	m.verifyAcc = nil
	m.mu.Unlock()

	if isVerify {
		m.startVerify(ctx, data)
		return
	}
	m.startSetup(ctx, data)
}

func (m *Manager) startSetup(ctx context.Context, data []byte) {
	code := m.config.PIN
	if code == "" {
		var err error
		if code, err = setup.GenerateCode(m.config.Rand); err != nil {
			m.reply(ctx, messages.ErrorReply(messages.M2, messages.ErrorUnavailable), ModeSetup)
			m.report(err, ModeSetup)
			return
		}
	}

	acc, err := setup.NewAccessory(m.config.Identity, code)
	if err != nil {
		m.report(err, ModeSetup)
		return
	}
	reply, err := acc.HandleM1(data)
	m.reply(ctx, reply, ModeSetup)
	if err != nil {
		m.report(err, ModeSetup)
		return
	}

	m.mu.Lock()
	m.setupAcc = acc
	m.accessoryRun = ModeSetup
	m.mu.Unlock()

	if m.log != nil {
		m.log.Info("pair setup started")
	}
	if m.config.Callbacks.OnPIN != nil {
		m.config.Callbacks.OnPIN(code)
	}
}

func (m *Manager) continueSetup(ctx context.Context, acc *setup.Accessory, data []byte) {
	var (
		reply  []byte
		result *setup.Result
		err    error
	)
	switch acc.State() {
	case setup.StateWaitingM3:
		reply, err = acc.HandleM3(data)
	case setup.StateWaitingM5:
		reply, result, err = acc.HandleM5(data)
	default:
		err = messages.ErrInvalidState
	}

	if errors.Is(err, messages.ErrSequenceMismatch) {
		if m.log != nil {
			m.log.Debugf("dropping setup message in state %s", acc.State())
		}
		return
	}

	m.reply(ctx, reply, ModeSetup)
	if err != nil {
		m.finish(ModeSetup)
		m.report(err, ModeSetup)
		return
	}
	if result == nil {
		return
	}

	m.finish(ModeSetup)
	peer := result.Peer()
	if err := m.config.Peers.SavePeer(peer); err != nil {
		m.report(fmt.Errorf("pairing: store peer: %w", err), ModeSetup)
		return
	}
	if m.log != nil {
		m.log.Infof("paired with controller %s", peer.ID)
	}
	if m.config.Callbacks.OnPaired != nil {
		m.config.Callbacks.OnPaired(peer)
	}
}

func (m *Manager) startVerify(ctx context.Context, data []byte) {
	acc, err := verify.NewAccessory(m.config.Identity, m.config.Peers.LoadPeer)
	if err != nil {
		m.report(err, ModeVerify)
		return
	}
	reply, err := acc.HandleM1(data)
	m.reply(ctx, reply, ModeVerify)
	if err != nil {
		m.report(err, ModeVerify)
		return
	}

	m.mu.Lock()
	m.verifyAcc = acc
	m.accessoryRun = ModeVerify
	m.mu.Unlock()
}

func (m *Manager) continueVerify(ctx context.Context, acc *verify.Accessory, data []byte) {
	reply, result, err := acc.HandleM3(data)
	if errors.Is(err, messages.ErrSequenceMismatch) {
		if m.log != nil {
			m.log.Debugf("dropping verify message in state %s", acc.State())
		}
		return
	}

	m.reply(ctx, reply, ModeVerify)
	m.finish(ModeVerify)
	if err != nil {
		m.report(err, ModeVerify)
		return
	}

	if m.log != nil {
		m.log.Infof("verified controller %s", result.Peer.ID)
	}
	if m.config.Callbacks.OnSessionKeys != nil {
		m.config.Callbacks.OnSessionKeys(result.Peer, result.Keys)
	}
}

func (m *Manager) reply(ctx context.Context, data []byte, mode Mode) {
	if data == nil {
		return
	}
	if err := m.config.Sender.SendPairingData(ctx, data, mode); err != nil {
		m.report(fmt.Errorf("pairing: send reply: %w", err), mode)
	}
}

func (m *Manager) finish(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == ModeSetup {
		m.setupAcc = nil
	} else {
		m.verifyAcc = nil
	}
}

func (m *Manager) currentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessoryRun
}

func (m *Manager) report(err error, mode Mode) {
	if m.log != nil {
		m.log.Warnf("pair %s failed: %v", mode, err)
	}
	if m.config.Callbacks.OnError != nil {
		m.config.Callbacks.OnError(err, mode)
	}
}
