package transport

import (
	"context"
	"net"
	"sync"

	"github.com/pion/logging"
)

// Dial connects to addr over TCP and starts a Conn on the stream.
func Dial(ctx context.Context, addr string, config ConnConfig) (*Conn, error) {
	if addr == "" {
		return nil, ErrInvalidAddress
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := NewConn(nc, config)
	if err := c.Start(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// ConnHandler is called for every accepted connection before its read loop
// starts. The handler installs the pairing handler and subscribers; the
// Server starts the Conn when it returns.
type ConnHandler func(c *Conn)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":49152").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler is called for each accepted connection. Required.
	Handler ConnHandler

	// Conn configures accepted connections.
	Conn ConnConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server accepts MRP connections.
type Server struct {
	listener net.Listener
	handler  ConnHandler
	config   ConnConfig
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewServer creates a Server with the given configuration.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Conn.LoggerFactory == nil {
		config.Conn.LoggerFactory = config.LoggerFactory
	}

	s := &Server{
		listener: config.Listener,
		handler:  config.Handler,
		config:   config.Conn,
		closeCh:  make(chan struct{}),
		conns:    make(map[*Conn]struct{}),
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("mrp-tcp")
	}

	if s.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}

	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("accepting MRP connections on %s", s.listener.Addr())
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and all accepted connections.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("stopping MRP server")
	}

	close(s.closeCh)
	s.listener.Close()

	s.connsMu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// AddConnection serves an existing stream as if it had been accepted.
// This is useful for testing with Pipe or net.Pipe.
func (s *Server) AddConnection(nc net.Conn) {
	s.wg.Add(1)
	go s.handleConn(nc)
}

// Conns returns the number of open connections.
func (s *Server) Conns() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				if s.log != nil {
					s.log.Warnf("accept failed: %v", err)
				}
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(nc)
	}
}

// handleConn runs one connection until it ends.
func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()

	c := NewConn(nc, s.config)

	s.connsMu.Lock()
	select {
	case <-s.closeCh:
		s.connsMu.Unlock()
		nc.Close()
		return
	default:
	}
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, c)
		s.connsMu.Unlock()
	}()

	if s.log != nil {
		s.log.Debugf("connection from %s", nc.RemoteAddr())
	}

	s.handler(c)
	if err := c.Start(); err != nil {
		c.Close()
		return
	}

	select {
	case <-c.Done():
	case <-s.closeCh:
		c.Close()
	}

	if s.log != nil {
		s.log.Debugf("connection from %s closed: %v", nc.RemoteAddr(), c.Err())
	}
}
