package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/backkem/remootio/pkg/crypto"
	"github.com/backkem/remootio/pkg/message"
	"github.com/google/uuid"
)

// Config is used to create a State after a successful handshake.
type Config struct {
	SessionKey      []byte // raw session key from the challenge
	InitialActionID uint32 // initialActionId from the challenge
}

// State is an established session.
type State struct {
	id            string
	sessionKey    []byte
	counter       *message.ActionCounter
	establishedAt time.Time

	mu     sync.RWMutex
	closed bool
}

// Snapshot is a read-only view of a State for callers and logs.
type Snapshot struct {
	ID            string
	NextActionID  uint32
	EstablishedAt time.Time
}

// NewState validates the handshake result and creates the session.
func NewState(config Config) (*State, error) {
	if !crypto.ValidKeySize(len(config.SessionKey)) {
		return nil, fmt.Errorf("%w: session key is %d bytes", ErrInvalidKeyLength, len(config.SessionKey))
	}
	if config.InitialActionID >= message.MaxActionID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidActionID, config.InitialActionID)
	}

	s := &State{
		id:            uuid.NewString(),
		sessionKey:    make([]byte, len(config.SessionKey)),
		counter:       message.NewActionCounter(config.InitialActionID),
		establishedAt: time.Now(),
	}
	// Don't hold references to caller's slices
	copy(s.sessionKey, config.SessionKey)
	return s, nil
}

// ID returns a random identifier used to correlate log lines.
func (s *State) ID() string {
	return s.id
}

// NextActionID returns the id the next command will carry.
func (s *State) NextActionID() uint32 {
	return s.counter.Current()
}

// Snapshot returns a copy of the observable session fields.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:            s.id,
		NextActionID:  s.counter.Current(),
		EstablishedAt: s.establishedAt,
	}
}

// SealCommand assigns the next action id to a command, encrypts it with the
// session key and authenticates it with authKey.
func (s *State) SealCommand(kind message.CommandKind, authKey []byte) (*message.Frame, uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, 0, ErrSessionClosed
	}

	id := s.counter.Next()
	frame, err := message.EncryptFrame(message.Command{
		Action: message.Action{Type: kind, ID: id},
	}, s.sessionKey, authKey)
	if err != nil {
		return nil, id, err
	}
	return frame, id, nil
}

// OpenResponse authenticates a received frame with authKey and decrypts it
// with the session key into out.
func (s *State) OpenResponse(f *message.Frame, authKey []byte, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	return message.OpenFrame(f, authKey, s.sessionKey, out)
}

// Close invalidates the session and wipes the session key.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for i := range s.sessionKey {
		s.sessionKey[i] = 0
	}
}

// Closed reports whether Close has been called.
func (s *State) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
