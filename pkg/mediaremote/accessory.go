package mediaremote

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/message"
	"github.com/backkem/mediaremote/pkg/pairing"
	"github.com/backkem/mediaremote/pkg/pairing/verify"
	"github.com/backkem/mediaremote/pkg/storage"
	"github.com/backkem/mediaremote/pkg/transport"
	"github.com/pion/logging"
)

// replyTimeout bounds replies the accessory sends from the read loop.
const replyTimeout = 5 * time.Second

// AccessoryConfig configures an Accessory.
type AccessoryConfig struct {
	// Identity is the accessory's long-term identity. Required.
	Identity *credentials.Identity

	// Store holds paired controllers. Required.
	Store storage.Store

	// Info is returned to controllers that introduce themselves. Required
	// fields default from Identity.
	Info *message.DeviceInfo

	// PIN fixes the setup code. If empty, a random code is used per attempt.
	PIN string

	// OnPIN is called with the setup code to display.
	OnPIN func(code string)

	// OnPaired is called after a controller completed pair setup.
	OnPaired func(peer *credentials.Peer)

	// OnVerified is called after a connection switched to session keys.
	OnVerified func(conn *transport.Conn, peer *credentials.Peer)

	// OnMessage receives every message not handled by the accessory.
	OnMessage func(conn *transport.Conn, msg *message.Message)

	// Conn configures accepted connections.
	Conn transport.ConnConfig

	// Rand is the random source for setup codes. If nil, crypto/rand is used.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Accessory answers controller connections: introduction, pair setup,
// pair verify and, once verified, application messages.
type Accessory struct {
	config AccessoryConfig
	log    logging.LeveledLogger

	mu    sync.Mutex
	conns map[*transport.Conn]*pairing.Manager
}

// NewAccessory creates an Accessory.
func NewAccessory(config AccessoryConfig) (*Accessory, error) {
	if config.Identity == nil {
		return nil, ErrNoIdentity
	}
	if config.Store == nil {
		return nil, ErrNoStore
	}
	if config.Info == nil {
		config.Info = DefaultDeviceInfo(string(config.Identity.ID), string(config.Identity.ID))
		config.Info.LocalizedModelName = "Apple TV"
	}
	if config.Conn.LoggerFactory == nil {
		config.Conn.LoggerFactory = config.LoggerFactory
	}

	a := &Accessory{
		config: config,
		conns:  make(map[*transport.Conn]*pairing.Manager),
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("mediaremote")
	}
	return a, nil
}

// Serve accepts connections on l until ctx is done.
func (a *Accessory) Serve(ctx context.Context, l net.Listener) error {
	server, err := transport.NewServer(transport.ServerConfig{
		Listener:      l,
		Handler:       a.attach,
		Conn:          a.config.Conn,
		LoggerFactory: a.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	if a.log != nil {
		a.log.Infof("accessory listening on %s", server.Addr())
	}

	<-ctx.Done()
	return server.Stop()
}

// ServeConn attaches the accessory to one stream and starts reading.
func (a *Accessory) ServeConn(nc net.Conn) (*transport.Conn, error) {
	conn := transport.NewConn(nc, a.config.Conn)
	a.attach(conn)
	if err := conn.Start(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Conns returns the number of attached connections.
func (a *Accessory) Conns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// attach installs the pairing responder and message handling on conn.
func (a *Accessory) attach(conn *transport.Conn) {
	mgr, err := pairing.NewManager(pairing.ManagerConfig{
		Sender:   pairingSender(conn),
		Identity: a.config.Identity,
		Peers:    a.config.Store,
		PIN:      a.config.PIN,
		Rand:     a.config.Rand,
		Callbacks: pairing.Callbacks{
			OnPIN:    a.config.OnPIN,
			OnPaired: a.config.OnPaired,
			OnSessionKeys: func(peer *credentials.Peer, keys *verify.SessionKeys) {
				a.encrypt(conn, peer, keys)
			},
		},
		LoggerFactory: a.config.LoggerFactory,
	})
	if err != nil {
		if a.log != nil {
			a.log.Errorf("pairing setup for %s: %v", conn.RemoteAddr(), err)
		}
		conn.Close()
		return
	}

	a.mu.Lock()
	a.conns[conn] = mgr
	a.mu.Unlock()

	conn.SetPairingHandler(func(msg *message.Message) {
		p := msg.CryptoPairing()
		if p == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		mgr.Deliver(ctx, p.PairingData)
	})
	conn.Subscribe(func(msg *message.Message) {
		a.handle(conn, msg)
	})

	go func() {
		<-conn.Done()
		mgr.Cancel()
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		if a.log != nil {
			a.log.Debugf("connection %s closed: %v", conn.RemoteAddr(), conn.Err())
		}
	}()
}

// encrypt switches conn to the keys of a completed pair verify. It runs on
// the read loop, so the next frame read is already decrypted.
func (a *Accessory) encrypt(conn *transport.Conn, peer *credentials.Peer, keys *verify.SessionKeys) {
	defer keys.Wipe()

	id := a.config.Identity
	creds := credentials.New("", peer.ID, id.ID, peer.PublicKey, id.Seed)
	if err := creds.SetSessionKeys(keys.Read, keys.Write); err != nil {
		if a.log != nil {
			a.log.Errorf("install session keys: %v", err)
		}
		conn.Close()
		return
	}
	conn.SetCipher(creds)

	if a.log != nil {
		a.log.Infof("controller %s verified on %s", peer.ID, conn.RemoteAddr())
	}
	if a.config.OnVerified != nil {
		a.config.OnVerified(conn, peer)
	}
}

func (a *Accessory) handle(conn *transport.Conn, msg *message.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	switch msg.Type {
	case message.TypeDeviceInfo:
		if info := msg.DeviceInfo(); info != nil && a.log != nil {
			a.log.Infof("introduced to %q (%s)", info.Name, info.UniqueIdentifier)
		}
		reply := message.New(cloneInfo(a.config.Info))
		reply.Identifier = msg.Identifier
		if err := conn.Send(ctx, reply); err != nil && a.log != nil {
			a.log.Warnf("send device info: %v", err)
		}
		return
	case message.TypeSendCommand:
		if !conn.Encrypted() {
			if a.log != nil {
				a.log.Debugf("dropping %s before verify", msg)
			}
			return
		}
		reply := &message.Message{Type: message.TypeSendCommandResult, Identifier: msg.Identifier}
		if err := conn.Send(ctx, reply); err != nil && a.log != nil {
			a.log.Warnf("send command result: %v", err)
		}
	}

	if a.config.OnMessage != nil {
		a.config.OnMessage(conn, msg)
	}
}
