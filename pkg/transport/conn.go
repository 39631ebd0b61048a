package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
)

// incomingQueueSize is the number of received messages buffered ahead of
// Receive calls.
const incomingQueueSize = 16

// messageConn turns a blocking read/write/close triple into a Transport.
// A single goroutine drains read into a channel.
type messageConn struct {
	read  func() ([]byte, error)
	write func(deadline time.Time, data []byte) error
	close func() error
	log   logging.LeveledLogger

	incoming chan []byte
	done     chan struct{}

	writeMu   sync.Mutex
	errMu     sync.Mutex
	readErr   error
	closeOnce sync.Once
	closeErr  error
}

func newMessageConn(
	read func() ([]byte, error),
	write func(time.Time, []byte) error,
	closeFn func() error,
	log logging.LeveledLogger,
) *messageConn {
	c := &messageConn{
		read:     read,
		write:    write,
		close:    closeFn,
		log:      log,
		incoming: make(chan []byte, incomingQueueSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *messageConn) readLoop() {
	defer close(c.incoming)

	for {
		data, err := c.read()
		if err != nil {
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()

			select {
			case <-c.done:
			default:
				if c.log != nil {
					c.log.Debugf("read loop stopped: %v", err)
				}
			}
			return
		}
		if len(data) > MaxMessageSize {
			if c.log != nil {
				c.log.Warnf("dropping %d byte message", len(data))
			}
			continue
		}

		select {
		case c.incoming <- data:
		case <-c.done:
			return
		}
	}
}

// Send implements Transport.
func (c *messageConn) Send(ctx context.Context, data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.write(writeDeadline(ctx), data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Receive implements Transport.
func (c *messageConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case data, ok := <-c.incoming:
		if !ok {
			return nil, c.closedErr()
		}
		return data, nil
	}
}

// Close implements Transport.
func (c *messageConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.close()
	})
	return c.closeErr
}

func (c *messageConn) closedErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.readErr)
}
