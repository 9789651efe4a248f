package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/backkem/mediaremote/pkg/message"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// DefaultRequestTimeout bounds Request when the context has no deadline.
const DefaultRequestTimeout = 10 * time.Second

// readBufferSize is the size of a single stream read.
const readBufferSize = 64 * 1024

// Cipher seals and opens frame bodies once a session is verified.
// Implementations keep their own nonce counters, so frames must be sealed
// in the order they are written and opened in the order they are read.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

// Handler receives a dispatched message. Handlers run on the read loop and
// must not block on replies from the same connection.
type Handler func(msg *message.Message)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// RequestTimeout bounds Request when the context has no deadline.
	// If zero, DefaultRequestTimeout is used.
	RequestTimeout time.Duration

	// MaxFrameSize bounds inbound frames. If zero, DefaultMaxFrameSize is used.
	MaxFrameSize int

	// Metrics records traffic counters. Optional.
	Metrics *Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn is a message connection over a byte stream.
type Conn struct {
	nc      net.Conn
	config  ConnConfig
	log     logging.LeveledLogger
	metrics *Metrics
	framer  *Framer

	writeMu sync.Mutex

	mu          sync.Mutex
	cipher      Cipher
	pendingID   map[string]chan *message.Message
	pendingType map[message.Type][]chan *message.Message
	subscribers []subscriber
	nextSubID   int
	pairing     Handler
	started     bool

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

type subscriber struct {
	id int
	fn Handler
}

// typeKeyed lists message types whose replies are matched by type instead of
// identifier.
var typeKeyed = map[message.Type]bool{
	message.TypeCryptoPairing: true,
	message.TypeDeviceInfo:    true,
}

// NewConn wraps nc. Call Start to begin reading.
func NewConn(nc net.Conn, config ConnConfig) *Conn {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	c := &Conn{
		nc:          nc,
		config:      config,
		metrics:     config.Metrics,
		framer:      NewFramer(config.MaxFrameSize),
		pendingID:   make(map[string]chan *message.Message),
		pendingType: make(map[message.Type][]chan *message.Message),
		done:        make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("mrp-conn")
	}
	return c
}

// Start begins the read loop.
func (c *Conn) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.metrics.connOpened()

	go c.readLoop()
	return nil
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// SetCipher installs the session cipher. Frames written after the call are
// sealed and frames read after the call are opened with it.
func (c *Conn) SetCipher(cipher Cipher) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cipher = cipher
}

// Encrypted reports whether a session cipher is installed.
func (c *Conn) Encrypted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cipher != nil
}

// SetPairingHandler routes CryptoPairing messages that no Request is waiting
// for to h.
func (c *Conn) SetPairingHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairing = h
}

// Subscribe registers fn for messages not claimed by a Request or the pairing
// handler. The returned function removes the subscription.
func (c *Conn) Subscribe(fn Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Send writes one message.
func (c *Conn) Send(ctx context.Context, msg *message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return c.Err()
	default:
	}

	c.mu.Lock()
	cipher := c.cipher
	c.mu.Unlock()
	if cipher != nil {
		if data, err = cipher.Encrypt(data); err != nil {
			return err
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.nc.SetWriteDeadline(deadline)
		defer c.nc.SetWriteDeadline(time.Time{})
	}

	frame := AppendFrame(nil, data)
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	c.metrics.frameOut(len(frame))

	if c.log != nil {
		c.log.Tracef("sent %s (%d bytes)", msg, len(frame))
	}
	return nil
}

// Request sends msg and waits for its reply. Messages of a type-keyed type
// are matched by type; all others carry an identifier, generated if empty.
func (c *Conn) Request(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	if !typeKeyed[msg.Type] && msg.Identifier == "" {
		msg.Identifier = strings.ToUpper(uuid.NewString())
	}

	ch := c.register(msg)
	if err := c.Send(ctx, msg); err != nil {
		c.unregister(msg, ch)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.unregister(msg, ch)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.metrics.timeout()
			return nil, fmt.Errorf("%w: %s", ErrTimeout, msg)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

// Expect waits for the next message of type t without sending anything.
func (c *Conn) Expect(ctx context.Context, t message.Type) (*message.Message, error) {
	if !typeKeyed[t] {
		return nil, fmt.Errorf("transport: %s is not matched by type", t)
	}
	probe := &message.Message{Type: t}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	ch := c.register(probe)
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.unregister(probe, ch)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.metrics.timeout()
			return nil, fmt.Errorf("%w: waiting for %s", ErrTimeout, t)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

func (c *Conn) register(msg *message.Message) chan *message.Message {
	ch := make(chan *message.Message, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if typeKeyed[msg.Type] {
		c.pendingType[msg.Type] = append(c.pendingType[msg.Type], ch)
	} else {
		c.pendingID[msg.Identifier] = ch
	}
	return ch
}

func (c *Conn) unregister(msg *message.Message, ch chan *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !typeKeyed[msg.Type] {
		if c.pendingID[msg.Identifier] == ch {
			delete(c.pendingID, msg.Identifier)
		}
		return
	}
	queue := c.pendingType[msg.Type]
	for i, pending := range queue {
		if pending == ch {
			c.pendingType[msg.Type] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	if len(c.pendingType[msg.Type]) == 0 {
		delete(c.pendingType, msg.Type)
	}
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close ends the connection.
func (c *Conn) Close() error {
	c.closeWithError(ErrClosed)
	return nil
}

func (c *Conn) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		started := c.started
		c.mu.Unlock()

		close(c.done)
		c.nc.Close()
		if started {
			c.metrics.connClosed()
		}

		if c.log != nil && !errors.Is(err, ErrClosed) {
			c.log.Debugf("connection to %s ended: %v", c.nc.RemoteAddr(), err)
		}
	})
}

func (c *Conn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.framer.Feed(buf[:n])
			if ferr := c.drain(); ferr != nil {
				c.closeWithError(ferr)
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				err = ErrPeerClosed
			case errors.Is(err, net.ErrClosed):
				err = ErrClosed
			}
			c.closeWithError(err)
			return
		}
	}
}

// drain handles every complete frame in the buffer. A returned error ends
// the connection.
func (c *Conn) drain() error {
	for {
		frame, err := c.framer.Next()
		if errors.Is(err, ErrFrameIncomplete) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.handleFrame(frame); err != nil {
			return err
		}
	}
}

func (c *Conn) handleFrame(frame []byte) error {
	c.metrics.frameIn(len(frame))

	c.mu.Lock()
	cipher := c.cipher
	c.mu.Unlock()

	data := frame
	if cipher != nil {
		var err error
		if data, err = cipher.Decrypt(frame); err != nil {
			c.metrics.decryptFailure()
			if c.log != nil {
				c.log.Warnf("dropping connection, frame failed authentication: %v", err)
			}
			return fmt.Errorf("transport: %w", err)
		}
	}

	msg, err := message.Decode(data)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("dropping undecodable frame: %v", err)
		}
		return nil
	}
	if c.log != nil {
		c.log.Tracef("received %s", msg)
	}

	c.dispatch(msg)
	return nil
}

func (c *Conn) dispatch(msg *message.Message) {
	c.mu.Lock()

	if msg.Identifier != "" {
		if ch, ok := c.pendingID[msg.Identifier]; ok {
			delete(c.pendingID, msg.Identifier)
			c.mu.Unlock()
			ch <- msg
			return
		}
		if msg.Type.IsResponse() {
			c.mu.Unlock()
			c.metrics.unmatched()
			if c.log != nil {
				c.log.Warnf("dropping %s, no pending request", msg)
			}
			return
		}
	}

	if msg.Type == message.TypeCryptoPairing && c.pairing != nil {
		h := c.pairing
		c.mu.Unlock()
		h(msg)
		return
	}

	if queue := c.pendingType[msg.Type]; len(queue) > 0 {
		ch := queue[0]
		if len(queue) == 1 {
			delete(c.pendingType, msg.Type)
		} else {
			c.pendingType[msg.Type] = queue[1:]
		}
		c.mu.Unlock()
		ch <- msg
		return
	}

	subs := make([]subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if len(subs) == 0 {
		c.metrics.unmatched()
		if c.log != nil {
			c.log.Debugf("dropping unmatched %s", msg)
		}
		return
	}
	for _, s := range subs {
		s.fn(msg)
	}
}
