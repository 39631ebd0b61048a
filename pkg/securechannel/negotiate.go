package securechannel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backkem/remootio/pkg/session"
	"github.com/backkem/remootio/pkg/transport"
	"github.com/pion/logging"
)

// DefaultTimeout bounds the wait for the challenge.
const DefaultTimeout = 5 * time.Second

// Options configures Negotiate.
type Options struct {
	// Timeout bounds the whole handshake (default: 5s).
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Negotiate performs the handshake over t and returns the new session.
//
// It does not close t on failure; the caller owns the transport.
func Negotiate(ctx context.Context, t transport.Transport, keys *session.KeyMaterial, opts Options) (*session.State, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	n := NewNegotiator(keys, opts.LoggerFactory)
	req, err := n.Start()
	if err != nil {
		return nil, err
	}

	if err := t.Send(ctx, req); err != nil {
		return nil, n.Fail(classify("send AUTH", err))
	}

	raw, err := t.Receive(ctx)
	if err != nil {
		return nil, n.Fail(classify("receive challenge", err))
	}
	return n.HandleChallenge(raw)
}

// classify maps a transport or context error onto the handshake errors.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
}
