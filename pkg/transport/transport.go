package transport

import (
	"context"
	"time"
)

// MaxMessageSize bounds a single message. Protocol messages are a few
// hundred bytes.
const MaxMessageSize = 64 * 1024

// Transport is a message-oriented duplex channel to one peer.
type Transport interface {
	// Send transmits one message. It honours the context deadline.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until the next message arrives, the context is done,
	// or the connection closes.
	Receive(ctx context.Context) ([]byte, error)

	// Close tears the connection down. Pending and later calls fail with
	// ErrClosed.
	Close() error
}

// Dialer opens a new Transport to a fixed peer.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// writeDeadline maps a context to a write deadline; zero means none.
func writeDeadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}
