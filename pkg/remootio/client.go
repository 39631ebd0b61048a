package remootio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/securechannel"
	"github.com/backkem/remootio/pkg/session"
	"github.com/backkem/remootio/pkg/transport"
	"github.com/pion/logging"
)

// Client talks to one device over one encrypted session.
//
// All methods are safe for concurrent use. Operations are serialized, so at
// most one command is in flight per Client. Clients for different devices
// share no state.
type Client struct {
	config ClientConfig
	keys   *session.KeyMaterial
	dialer transport.Dialer
	log    logging.LeveledLogger

	// mu serializes operations and guards conn, sess and closed.
	mu     sync.Mutex
	conn   transport.Transport
	sess   *session.State
	closed bool

	// statusMu guards the observable status so it can be read while an
	// operation is in flight.
	statusMu  sync.RWMutex
	available bool
	lastState message.DeviceState
}

// NewClient validates config and creates a client. It does not connect.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	config.applyDefaults()

	keys, err := session.ParseKeyMaterial(config.SecretKey, config.AuthKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	dialer := config.Dialer
	if dialer == nil {
		wsDialer, err := transport.NewWebSocketDialer(transport.WebSocketConfig{
			Host:             config.Host,
			Port:             config.Port,
			HandshakeTimeout: config.ResponseTimeout,
			LoggerFactory:    config.LoggerFactory,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		dialer = wsDialer
	}

	c := &Client{
		config:    config,
		keys:      keys,
		dialer:    dialer,
		lastState: message.DeviceStateUnknown,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("remootio-client")
	}
	return c, nil
}

// Name returns the configured device name.
func (c *Client) Name() string {
	return c.config.Name
}

// Host returns the configured device host.
func (c *Client) Host() string {
	return c.config.Host
}

// Authenticate opens a fresh connection and performs the handshake. Any
// previous session and connection are discarded first; there is no partial
// resume.
func (c *Client) Authenticate(ctx context.Context) (session.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return session.Snapshot{}, ErrClientClosed
	}
	if err := c.authenticateLocked(ctx); err != nil {
		return session.Snapshot{}, err
	}
	return c.sess.Snapshot(), nil
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	c.teardownLocked()

	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		c.setAvailable(false)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: dial: %w", ErrTimeout, err)
		}
		return classify("dial", err)
	}

	sess, err := securechannel.Negotiate(ctx, conn, c.keys, securechannel.Options{
		Timeout:       c.config.ResponseTimeout,
		LoggerFactory: c.config.LoggerFactory,
	})
	if err != nil {
		conn.Close()
		c.setAvailable(false)
		if c.log != nil {
			c.log.Warnf("%s: authentication failed: %v", c.config.Name, err)
		}
		return err
	}

	c.conn = conn
	c.sess = sess
	c.setAvailable(true)
	if c.log != nil {
		c.log.Infof("%s: session %s established", c.config.Name, sess.ID())
	}
	return nil
}

// SendCommand sends one command on the current session and returns the
// device state from the response.
//
// A missing session yields ErrNotAuthenticated. Any other failure drops the
// session, closes the connection and marks the client unavailable.
func (c *Client) SendCommand(ctx context.Context, kind message.CommandKind) (message.DeviceState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return message.DeviceStateUnknown, ErrClientClosed
	}
	return c.sendCommandLocked(ctx, kind)
}

// Do sends a command, authenticating first when no session is held.
func (c *Client) Do(ctx context.Context, kind message.CommandKind) (message.DeviceState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return message.DeviceStateUnknown, ErrClientClosed
	}
	if !kind.IsValid() {
		return message.DeviceStateUnknown, fmt.Errorf("%w: %q", ErrInvalidCommand, kind)
	}
	if c.sess == nil {
		if err := c.authenticateLocked(ctx); err != nil {
			return message.DeviceStateUnknown, err
		}
	}
	return c.sendCommandLocked(ctx, kind)
}

func (c *Client) sendCommandLocked(ctx context.Context, kind message.CommandKind) (message.DeviceState, error) {
	if !kind.IsValid() {
		return message.DeviceStateUnknown, fmt.Errorf("%w: %q", ErrInvalidCommand, kind)
	}
	if c.sess == nil {
		return message.DeviceStateUnknown, ErrNotAuthenticated
	}

	state, err := c.exchange(ctx, kind)
	if err != nil {
		c.teardownLocked()
		c.setAvailable(false)
		if c.log != nil {
			c.log.Warnf("%s: %s failed: %v", c.config.Name, kind, err)
		}
		return message.DeviceStateUnknown, err
	}
	return state, nil
}

// exchange performs one request/response round trip. The caller tears the
// session down on error.
func (c *Client) exchange(ctx context.Context, kind message.CommandKind) (message.DeviceState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ResponseTimeout)
	defer cancel()

	frame, id, err := c.sess.SealCommand(kind, c.keys.AuthKey())
	if err != nil {
		return message.DeviceStateUnknown, err
	}
	raw, err := message.SealEnvelope(frame)
	if err != nil {
		return message.DeviceStateUnknown, err
	}

	if c.log != nil {
		c.log.Debugf("%s: sending %s id=%d", c.config.Name, kind, id)
	}
	if err := c.conn.Send(ctx, raw); err != nil {
		return message.DeviceStateUnknown, classify("send", err)
	}

	reply, err := c.conn.Receive(ctx)
	if err != nil {
		return message.DeviceStateUnknown, classify("receive", err)
	}

	respFrame, err := message.ParseFrame(reply)
	if err != nil {
		return message.DeviceStateUnknown, err
	}
	var resp message.Response
	if err := c.sess.OpenResponse(respFrame, c.keys.AuthKey(), &resp); err != nil {
		return message.DeviceStateUnknown, err
	}
	if resp.Response == nil {
		return message.DeviceStateUnknown, fmt.Errorf("%w: no response object", ErrMalformedResponse)
	}

	body := resp.Response
	if body.ID != nil && !message.ValidateActionID(*body.ID, id) {
		if c.log != nil {
			c.log.Warnf("%s: %v: got id %d, sent %d", c.config.Name, message.ErrStaleResponse, *body.ID, id)
		}
	}
	if body.Success != nil && !*body.Success {
		return message.DeviceStateUnknown, fmt.Errorf("%w: %s %s", ErrCommandRejected, kind, body.ErrorCode)
	}

	state := message.ParseDeviceState(body.State)
	if body.State != "" {
		c.setLastState(state)
	}
	c.setAvailable(true)
	if c.log != nil {
		c.log.Debugf("%s: %s id=%d -> %s", c.config.Name, kind, id, state)
	}
	return state, nil
}

// classify maps transport and context errors onto the client error set.
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

// Available reports whether the last exchange succeeded.
func (c *Client) Available() bool {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.available
}

// LastState returns the last door state reported by the device.
func (c *Client) LastState() message.DeviceState {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.lastState
}

// Session returns a snapshot of the current session, if any.
func (c *Client) Session() (session.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return session.Snapshot{}, false
	}
	return c.sess.Snapshot(), true
}

// Close drops the session and closes the connection. The client cannot be
// used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.teardownLocked()
	c.setAvailable(false)
	return nil
}

func (c *Client) teardownLocked() {
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && c.log != nil {
			c.log.Debugf("%s: close: %v", c.config.Name, err)
		}
		c.conn = nil
	}
}

func (c *Client) setAvailable(v bool) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.available = v
}

func (c *Client) setLastState(s message.DeviceState) {
	c.statusMu.Lock()
	changed := c.lastState != s
	c.lastState = s
	c.statusMu.Unlock()

	if changed && c.config.OnStateChanged != nil {
		c.config.OnStateChanged(s)
	}
}
