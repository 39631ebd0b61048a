package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers queued messages.
	// Default: 1ms
	ProcessInterval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory, message-preserving connection between two
// endpoints. It wraps pion's test.Bridge; each Send is one bridge packet.
//
// By default, Pipe delivers messages in a background goroutine. With
// AutoProcess disabled, call Tick or Process to move messages, which lets
// tests hold a message in flight.
//
// Closing an endpoint behaves like closing a socket: the peer still
// receives everything sent before the close, then ErrClosed. The pipe shuts
// down once both endpoints are closed, or on Pipe.Close.
type Pipe struct {
	bridge *test.Bridge
	ends   [2]*PipeEnd

	mu              sync.Mutex
	closed          bool
	endsClosed      int
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// PipeEnd is one endpoint of a Pipe.
type PipeEnd struct {
	*messageConn
	pipe *Pipe
	conn net.Conn
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("transport-pipe")
	}
	p.ends[0] = newPipeEnd(p, p.bridge.GetConn0(), log)
	p.ends[1] = newPipeEnd(p, p.bridge.GetConn1(), log)

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func newPipeEnd(p *Pipe, conn net.Conn, log logging.LeveledLogger) *PipeEnd {
	e := &PipeEnd{pipe: p, conn: conn}
	e.messageConn = newMessageConn(e.read, e.write, p.Close, log)
	return e
}

// End0 returns the first endpoint, conventionally the client.
func (p *Pipe) End0() *PipeEnd { return p.ends[0] }

// End1 returns the second endpoint, conventionally the device.
func (p *Pipe) End1() *PipeEnd { return p.ends[1] }

// startAutoProcess starts the background message delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// Tick delivers at most one message in each direction.
// Returns the number of messages delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued messages.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Wait for goroutine outside lock
	p.wg.Wait()

	var firstErr error
	for _, e := range p.ends {
		// Unblock Receive callers on both sides
		e.closeOnce.Do(func() { close(e.done) })
		if err := e.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// An empty packet marks the end of the peer's stream. Send never
// transmits empty messages.
func (e *PipeEnd) read() ([]byte, error) {
	buf := make([]byte, MaxMessageSize)
	n, err := e.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return buf[:n], nil
}

func (e *PipeEnd) write(_ time.Time, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty message")
	}
	_, err := e.conn.Write(data)
	return err
}

// Close closes this endpoint. Messages already sent are still delivered to
// the peer, followed by end of stream.
func (e *PipeEnd) Close() error {
	last := false
	e.closeOnce.Do(func() {
		e.writeMu.Lock()
		_, _ = e.conn.Write(nil)
		e.writeMu.Unlock()
		close(e.done)
		last = e.pipe.endClosed()
	})
	if last {
		return e.pipe.Close()
	}
	return nil
}

// endClosed records an endpoint close and reports whether both are closed.
func (p *Pipe) endClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endsClosed++
	return p.endsClosed >= 2
}

var _ Transport = (*PipeEnd)(nil)

// PipeDialer hands out a fresh Pipe on every Dial and passes the far end to
// Accept in its own goroutine. It stands in for a network dialer in tests.
type PipeDialer struct {
	// Accept serves the device side of each new pipe. Required.
	Accept func(peer Transport)

	// Config is used for every pipe.
	Config PipeConfig

	mu    sync.Mutex
	pipes []*Pipe
	dials int
}

// Dial implements Dialer.
func (d *PipeDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := d.Config
	if cfg.ProcessInterval == 0 {
		cfg = DefaultPipeConfig()
		cfg.LoggerFactory = d.Config.LoggerFactory
	}
	p := NewPipeWithConfig(cfg)

	d.mu.Lock()
	d.pipes = append(d.pipes, p)
	d.dials++
	d.mu.Unlock()

	go d.Accept(p.End1())
	return p.End0(), nil
}

// Dials returns how many connections have been opened.
func (d *PipeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Close closes every pipe opened by the dialer.
func (d *PipeDialer) Close() error {
	d.mu.Lock()
	pipes := d.pipes
	d.pipes = nil
	d.mu.Unlock()

	for _, p := range pipes {
		p.Close()
	}
	return nil
}
