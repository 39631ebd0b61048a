package securechannel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/session"
	"github.com/pion/logging"
)

// State represents the handshake state machine.
type State int

const (
	StateIdle               State = iota
	StateAuthSent                 // AUTH request produced
	StateChallengeReceived        // challenge authenticated and decrypted
	StateSessionEstablished       // session created
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAuthSent:
		return "AuthSent"
	case StateChallengeReceived:
		return "ChallengeReceived"
	case StateSessionEstablished:
		return "SessionEstablished"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Negotiator runs one handshake. It is not reusable; create a new one per
// connection.
//
// Usage:
//
//	n := securechannel.NewNegotiator(keys, loggerFactory)
//	req, _ := n.Start()
//	// send req, receive challenge
//	sess, err := n.HandleChallenge(challenge)
type Negotiator struct {
	keys *session.KeyMaterial
	log  logging.LeveledLogger

	mu      sync.Mutex
	state   State
	err     error
	session *session.State
}

// NewNegotiator creates a negotiator for the given long-term keys.
// loggerFactory may be nil.
func NewNegotiator(keys *session.KeyMaterial, loggerFactory logging.LoggerFactory) *Negotiator {
	n := &Negotiator{
		keys:  keys,
		state: StateIdle,
	}
	if loggerFactory != nil {
		n.log = loggerFactory.NewLogger("securechannel")
	}
	return n
}

// State returns the current handshake state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Err returns the error that moved the negotiator to StateFailed.
func (n *Negotiator) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Session returns the established session, or nil.
func (n *Negotiator) Session() *session.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

// Start begins the handshake and returns the AUTH request to send.
func (n *Negotiator) Start() ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return nil, fmt.Errorf("%w: Start in state %s", ErrInvalidState, n.state)
	}
	if n.keys == nil {
		return nil, n.failLocked(fmt.Errorf("%w: no key material", ErrAuthenticationFailed))
	}
	n.setStateLocked(StateAuthSent)
	return message.AuthRequest(), nil
}

// HandleChallenge processes the device's reply to AUTH. On success the
// negotiator is in StateSessionEstablished and the new session is returned.
// Any error leaves it in StateFailed.
func (n *Negotiator) HandleChallenge(raw []byte) (*session.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateAuthSent {
		return nil, fmt.Errorf("%w: HandleChallenge in state %s", ErrInvalidState, n.state)
	}

	env, err := message.ParseEnvelope(raw)
	if err != nil {
		return nil, n.failLocked(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}
	frame, err := env.Frame()
	if err != nil {
		return nil, n.failLocked(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}

	// The MAC is checked before any decryption.
	if err := message.VerifyMAC(frame, n.keys.AuthKey()); err != nil {
		if n.log != nil {
			n.log.Warnf("challenge rejected: %v", err)
		}
		return nil, n.failLocked(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}

	var plaintext json.RawMessage
	if err := message.DecryptFrame(frame, n.keys.SecretKey(), &plaintext); err != nil {
		return nil, n.failLocked(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}
	n.setStateLocked(StateChallengeReceived)

	ch, err := ParseChallenge(plaintext)
	if err != nil {
		return nil, n.failLocked(err)
	}

	sess, err := session.NewState(session.Config{
		SessionKey:      ch.SessionKey,
		InitialActionID: ch.InitialActionID,
	})
	if err != nil {
		return nil, n.failLocked(fmt.Errorf("%w: %w", ErrMalformedChallenge, err))
	}
	wipe(ch.SessionKey)

	n.session = sess
	n.setStateLocked(StateSessionEstablished)
	if n.log != nil {
		n.log.Debugf("session %s established, next action id %d", sess.ID(), sess.NextActionID())
	}
	return sess, nil
}

// Fail aborts the handshake, for example on a transport error or timeout.
// Partial state is discarded. It returns err for convenience.
func (n *Negotiator) Fail(err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failLocked(err)
}

func (n *Negotiator) failLocked(err error) error {
	if err == nil {
		err = errors.New("securechannel: handshake aborted")
	}
	if n.session != nil {
		n.session.Close()
		n.session = nil
	}
	n.err = err
	n.setStateLocked(StateFailed)
	return err
}

func (n *Negotiator) setStateLocked(s State) {
	if n.log != nil {
		n.log.Tracef("state %s -> %s", n.state, s)
	}
	n.state = s
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
