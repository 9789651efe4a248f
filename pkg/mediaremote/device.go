package mediaremote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/message"
	"github.com/backkem/mediaremote/pkg/pairing"
	"github.com/backkem/mediaremote/pkg/transport"
	"github.com/pion/logging"
)

// DeviceConfig configures a controller Device.
type DeviceConfig struct {
	// Info is sent by Introduce. If nil, DefaultDeviceInfo is used with a
	// random identifier.
	Info *message.DeviceInfo

	// Identity is the controller identity used by Pair. If nil, a new one
	// is generated per pairing.
	Identity *credentials.Identity

	// PairingTimeout bounds Pair and Verify without a context deadline.
	// If zero, pairing.DefaultTimeout is used.
	PairingTimeout time.Duration

	// Conn configures the connection created by Dial.
	Conn transport.ConnConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Device is a controller connection to one media device.
type Device struct {
	config  DeviceConfig
	conn    *transport.Conn
	pairing *pairing.Manager
	log     logging.LeveledLogger

	mu       sync.Mutex
	peerInfo *message.DeviceInfo
	creds    *credentials.Credentials
}

// Dial connects to addr and returns a Device on the new connection.
func Dial(ctx context.Context, addr string, config DeviceConfig) (*Device, error) {
	if config.Conn.LoggerFactory == nil {
		config.Conn.LoggerFactory = config.LoggerFactory
	}
	conn, err := transport.Dial(ctx, addr, config.Conn)
	if err != nil {
		return nil, fmt.Errorf("mediaremote: dial %s: %w", addr, err)
	}
	d, err := NewDevice(conn, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// NewDevice returns a Device on an existing connection. The connection
// may already be started.
func NewDevice(conn *transport.Conn, config DeviceConfig) (*Device, error) {
	if config.Info == nil {
		config.Info = DefaultDeviceInfo("mediaremote", credentials.NewPairingID())
	}

	mgr, err := pairing.NewManager(pairing.ManagerConfig{
		Sender:        pairingSender(conn),
		Timeout:       config.PairingTimeout,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	d := &Device{
		config:  config,
		conn:    conn,
		pairing: mgr,
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("mediaremote")
	}

	conn.SetPairingHandler(func(msg *message.Message) {
		if p := msg.CryptoPairing(); p != nil {
			mgr.Deliver(context.Background(), p.PairingData)
		}
	})
	return d, nil
}

// pairingSender sends handshake messages as CryptoPairing payloads on conn.
func pairingSender(conn *transport.Conn) pairing.Sender {
	return pairing.SenderFunc(func(ctx context.Context, data []byte, mode pairing.Mode) error {
		return conn.Send(ctx, message.NewCryptoPairing(data, mode == pairing.ModeSetup))
	})
}

// Introduce sends this controller's DeviceInfo and returns the device's.
func (d *Device) Introduce(ctx context.Context) (*message.DeviceInfo, error) {
	resp, err := d.conn.Request(ctx, message.New(cloneInfo(d.config.Info)))
	if err != nil {
		return nil, fmt.Errorf("mediaremote: introduce: %w", err)
	}
	info := resp.DeviceInfo()
	if info == nil {
		return nil, ErrNoDeviceInfo
	}

	if d.log != nil {
		d.log.Infof("connected to %q (%s, build %s)", info.Name, info.UniqueIdentifier, info.SystemBuildVersion)
	}

	d.mu.Lock()
	d.peerInfo = cloneInfo(info)
	d.mu.Unlock()
	return info, nil
}

// PeerInfo returns the device's DeviceInfo from Introduce, or nil.
func (d *Device) PeerInfo() *message.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.peerInfo == nil {
		return nil
	}
	return cloneInfo(d.peerInfo)
}

// Pair runs pair setup. pin is called once the device shows its code. The
// returned credentials carry the device's unique identifier when Introduce
// ran first.
func (d *Device) Pair(ctx context.Context, pin pairing.PINFunc) (*credentials.Credentials, error) {
	var uid string
	if info := d.PeerInfo(); info != nil {
		uid = info.UniqueIdentifier
	}
	creds, err := d.pairing.Setup(ctx, d.config.Identity, uid, pin)
	if err != nil {
		return nil, fmt.Errorf("mediaremote: pair: %w", err)
	}
	return creds, nil
}

// Verify runs pair verify with stored credentials and switches the
// connection to the new session keys.
func (d *Device) Verify(ctx context.Context, creds *credentials.Credentials) error {
	keys, err := d.pairing.Verify(ctx, creds)
	if err != nil {
		return fmt.Errorf("mediaremote: verify: %w", err)
	}
	defer keys.Wipe()

	if err := creds.SetSessionKeys(keys.Read, keys.Write); err != nil {
		return err
	}
	d.conn.SetCipher(creds)

	d.mu.Lock()
	d.creds = creds
	d.mu.Unlock()

	if d.log != nil {
		d.log.Infof("session to %s encrypted", d.conn.RemoteAddr())
	}
	return nil
}

// Verified reports whether Verify installed session keys.
func (d *Device) Verified() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creds != nil
}

// SendCommand sends a remote control command and waits for its result.
func (d *Device) SendCommand(ctx context.Context, cmd message.Command) (*message.Message, error) {
	if !d.Verified() {
		return nil, ErrNotVerified
	}
	return d.conn.Request(ctx, message.New(&message.SendCommand{Command: cmd}))
}

// Send writes one message.
func (d *Device) Send(ctx context.Context, msg *message.Message) error {
	return d.conn.Send(ctx, msg)
}

// Request sends msg and waits for its reply.
func (d *Device) Request(ctx context.Context, msg *message.Message) (*message.Message, error) {
	return d.conn.Request(ctx, msg)
}

// Subscribe registers fn for unsolicited messages.
func (d *Device) Subscribe(fn transport.Handler) (unsubscribe func()) {
	return d.conn.Subscribe(fn)
}

// Conn returns the underlying connection.
func (d *Device) Conn() *transport.Conn {
	return d.conn
}

// Done is closed when the connection ends.
func (d *Device) Done() <-chan struct{} {
	return d.conn.Done()
}

// Close cancels any handshake and closes the connection.
func (d *Device) Close() error {
	d.pairing.Cancel()
	return d.conn.Close()
}
