package device

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/session"
	"github.com/backkem/remootio/pkg/transport"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// DefaultSessionKeySize is the session key size issued in challenges.
const DefaultSessionKeySize = 16

// Faults alter the simulator's behaviour to exercise client error handling.
type Faults struct {
	BadChallengeMAC bool // challenge MAC computed under the wrong key
	IgnoreAuth      bool // never answer AUTH
	IgnoreCommands  bool // never answer commands
	StaleResponseID bool // answer with a different action id
	RejectCommands  bool // answer success:false
	OmitState       bool // answer without a state field
	BadResponseMAC  bool // response MAC computed under the wrong key
}

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	// Keys - Required, lowercase hex
	SecretKey string
	AuthKey   string

	// InitialActionID, if set, is used in every challenge. Otherwise a
	// random id is drawn per connection.
	InitialActionID *uint32

	// InitialState is the simulated door state (default: closed).
	InitialState message.DeviceState

	// SessionKeySize is 16, 24 or 32 (default: 16).
	SessionKeySize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Stats counts simulator activity.
type Stats struct {
	Connections     int
	Authentications int
	Commands        int
	RelayTriggers   int
	LastActionID    uint32
}

// Simulator is a simulated device. It serves any number of connections;
// they share the door state.
type Simulator struct {
	keys          *session.KeyMaterial
	initialID     *uint32
	keySize       int
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
	upgrader      websocket.Upgrader

	mu     sync.Mutex
	state  message.DeviceState
	faults Faults
	stats  Stats
	conns  map[transport.Transport]struct{}
	closed bool
}

// NewSimulator creates a simulator.
func NewSimulator(config SimulatorConfig) (*Simulator, error) {
	keys, err := session.ParseKeyMaterial(config.SecretKey, config.AuthKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if config.SessionKeySize == 0 {
		config.SessionKeySize = DefaultSessionKeySize
	}
	switch config.SessionKeySize {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: session key size %d", ErrInvalidConfig, config.SessionKeySize)
	}
	if config.InitialActionID != nil && *config.InitialActionID >= message.MaxActionID {
		return nil, fmt.Errorf("%w: initial action id %d", ErrInvalidConfig, *config.InitialActionID)
	}
	if config.InitialState == "" {
		config.InitialState = message.DeviceStateClosed
	}

	s := &Simulator{
		keys:          keys,
		initialID:     config.InitialActionID,
		keySize:       config.SessionKeySize,
		loggerFactory: config.LoggerFactory,
		state:         config.InitialState,
		conns:         make(map[transport.Transport]struct{}),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("device-sim")
	}
	return s, nil
}

// State returns the simulated door state.
func (s *Simulator) State() message.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState sets the simulated door state, as if a person used the door.
func (s *Simulator) SetState(state message.DeviceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// SetFaults replaces the active faults.
func (s *Simulator) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// Stats returns a copy of the activity counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Handler returns an HTTP handler that upgrades each request to a WebSocket
// and serves it.
func (s *Simulator) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("upgrade failed: %v", err)
			}
			return
		}
		ws := transport.NewWebSocket(conn, s.loggerFactory)
		if s.log != nil {
			s.log.Debugf("connection from %s", ws.RemoteAddr())
		}
		if err := s.Serve(r.Context(), ws); err != nil && s.log != nil {
			s.log.Debugf("connection from %s ended: %v", ws.RemoteAddr(), err)
		}
	})
}

// PipeDialer returns a dialer whose connections are served in memory by the
// simulator.
func (s *Simulator) PipeDialer() *transport.PipeDialer {
	return &transport.PipeDialer{
		Accept: func(peer transport.Transport) {
			if err := s.Serve(context.Background(), peer); err != nil && s.log != nil {
				s.log.Debugf("pipe connection ended: %v", err)
			}
		},
		Config: transport.PipeConfig{
			AutoProcess:   true,
			LoggerFactory: s.loggerFactory,
		},
	}
}

// Close closes every active connection. Serve calls return ErrClosed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := s.conns
	s.conns = make(map[transport.Transport]struct{})
	s.mu.Unlock()

	for t := range conns {
		t.Close()
	}
	return nil
}

// Serve runs the device side of one connection until the peer disconnects,
// ctx is done, or the peer violates the protocol. Serve closes t.
func (s *Simulator) Serve(ctx context.Context, t transport.Transport) error {
	if err := s.track(t); err != nil {
		t.Close()
		return err
	}
	defer s.untrack(t)
	defer t.Close()

	c := &simConn{sim: s, t: t}
	for {
		raw, err := t.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				s.mu.Lock()
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return ErrClosed
				}
			}
			return err
		}
		if err := c.handle(ctx, raw); err != nil {
			return err
		}
	}
}

func (s *Simulator) track(t transport.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.conns[t] = struct{}{}
	s.stats.Connections++
	return nil
}

func (s *Simulator) untrack(t transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, t)
}

// newInitialActionID returns the configured id or a random one.
func (s *Simulator) newInitialActionID() (uint32, error) {
	if s.initialID != nil {
		return *s.initialID, nil
	}
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]) % message.MaxActionID, nil
}

// execute applies a command to the door and returns the response body.
func (s *Simulator) execute(kind message.CommandKind, id uint32) (*message.ResponseBody, Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Commands++
	s.stats.LastActionID = id
	faults := s.faults

	success := !faults.RejectCommands
	body := &message.ResponseBody{
		Type:    kind,
		ID:      &id,
		Success: &success,
	}
	if !success {
		body.ErrorCode = "rejected"
		body.State = string(s.state)
		return body, faults
	}

	switch kind {
	case message.CommandTrigger:
		s.state = toggle(s.state)
		body.RelayTriggered = true
	case message.CommandOpen:
		if s.state != message.DeviceStateOpen {
			s.state = message.DeviceStateOpen
			body.RelayTriggered = true
		}
	case message.CommandClose:
		if s.state != message.DeviceStateClosed {
			s.state = message.DeviceStateClosed
			body.RelayTriggered = true
		}
	}
	if body.RelayTriggered {
		s.stats.RelayTriggers++
	}
	if !faults.OmitState {
		body.State = string(s.state)
	}
	return body, faults
}

func toggle(state message.DeviceState) message.DeviceState {
	if state == message.DeviceStateOpen {
		return message.DeviceStateClosed
	}
	return message.DeviceStateOpen
}
