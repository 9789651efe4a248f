package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers chunks.
	// Default: 1ms
	ProcessInterval time.Duration

	// ChunkSize splits every write into chunks of at most this many bytes,
	// so readers see frames arrive in pieces. Zero delivers writes whole.
	ChunkSize int
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is a bidirectional in-memory stream between two endpoints.
// It wraps pion's test.Bridge, which delivers each write as one chunk.
//
// By default, Pipe delivers chunks in a background goroutine. Use
// PipeConfig.AutoProcess = false and Tick or Process for manual control.
type Pipe struct {
	bridge *test.Bridge
	config PipeConfig
	conns  [2]*PipeConn

	mu      sync.Mutex
	closed  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	if config.ProcessInterval == 0 {
		config.ProcessInterval = 1 * time.Millisecond
	}

	p := &Pipe{
		bridge: test.NewBridge(),
		config: config,
		stopCh: make(chan struct{}),
	}
	p.conns[0] = newPipeConn(p, p.bridge.GetConn0(), 0)
	p.conns[1] = newPipeConn(p, p.bridge.GetConn1(), 1)

	if config.AutoProcess {
		p.running = true
		p.wg.Add(1)
		go p.autoProcess()
	}
	return p
}

func (p *Pipe) autoProcess() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.ProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			for p.bridge.Tick() > 0 {
			}
		}
	}
}

// Conn0 returns endpoint 0.
func (p *Pipe) Conn0() net.Conn { return p.conns[0] }

// Conn1 returns endpoint 1.
func (p *Pipe) Conn1() net.Conn { return p.conns[1] }

// Tick delivers one chunk in each direction, if available.
// Returns the number of chunks delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued chunks and returns their count.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.running {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.conns[0].Close()
	err1 := p.conns[1].Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// PipeConn is one endpoint of a Pipe.
type PipeConn struct {
	conn   net.Conn
	pipe   *Pipe
	local  PipeAddr
	remote PipeAddr

	closeOnce sync.Once
	closed    chan struct{}
}

func newPipeConn(p *Pipe, conn net.Conn, id int) *PipeConn {
	return &PipeConn{
		conn:   conn,
		pipe:   p,
		local:  PipeAddr{ID: id},
		remote: PipeAddr{ID: 1 - id},
		closed: make(chan struct{}),
	}
}

// Read reads the next delivered chunk. Chunks longer than b are truncated,
// so callers should read with a buffer of at least the largest write.
// After Close, Read returns net.ErrClosed.
func (c *PipeConn) Read(b []byte) (int, error) {
	n, err := c.conn.Read(b)
	if err != nil && c.isClosed() {
		return n, net.ErrClosed
	}
	return n, err
}

func (c *PipeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Write queues b for delivery, split according to PipeConfig.ChunkSize.
func (c *PipeConn) Write(b []byte) (int, error) {
	if c.isClosed() {
		return 0, net.ErrClosed
	}

	size := c.pipe.config.ChunkSize
	if size <= 0 {
		size = len(b)
	}
	written := 0
	for written < len(b) {
		end := written + size
		if end > len(b) {
			end = len(b)
		}
		n, err := c.conn.Write(b[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Close closes the endpoint and unblocks a pending Read. The bridge only
// closes its read channel on a later tick, so the read deadline is forced
// instead.
func (c *PipeConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		if derr := c.conn.SetReadDeadline(time.Now()); err == nil {
			err = derr
		}
	})
	return err
}

// LocalAddr returns the local network address.
func (c *PipeConn) LocalAddr() net.Addr { return c.local }

// RemoteAddr returns the remote network address.
func (c *PipeConn) RemoteAddr() net.Addr { return c.remote }

// SetDeadline sets the read and write deadlines.
func (c *PipeConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *PipeConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *PipeConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// Verify PipeConn implements net.Conn.
var _ net.Conn = (*PipeConn)(nil)
