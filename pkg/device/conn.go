package device

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/securechannel"
	"github.com/backkem/remootio/pkg/session"
	"github.com/backkem/remootio/pkg/transport"
)

// simConn is the device side of one connection.
type simConn struct {
	sim *Simulator
	t   transport.Transport

	sessionKey []byte
	expectedID uint32
}

func (c *simConn) handle(ctx context.Context, raw []byte) error {
	env, err := message.ParseEnvelope(raw)
	if err != nil {
		c.sendError(ctx, "invalid message")
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	switch env.Type {
	case message.MessageTypeAuth:
		return c.handleAuth(ctx)
	case message.MessageTypeEncrypted:
		frame, err := env.Frame()
		if err != nil {
			c.sendError(ctx, "invalid message")
			return fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		return c.handleCommand(ctx, frame)
	default:
		c.sendError(ctx, "unsupported message type")
		return fmt.Errorf("%w: type %q", ErrProtocol, env.Type)
	}
}

func (c *simConn) handleAuth(ctx context.Context) error {
	s := c.sim
	s.mu.Lock()
	faults := s.faults
	s.mu.Unlock()

	if faults.IgnoreAuth {
		return nil
	}

	key := make([]byte, s.keySize)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	initialID, err := s.newInitialActionID()
	if err != nil {
		return err
	}

	keys := s.keys
	if faults.BadChallengeMAC {
		keys, err = wrongMACKeys(s.keys)
		if err != nil {
			return err
		}
	}
	raw, err := securechannel.SealChallenge(securechannel.Challenge{
		SessionKey:      key,
		InitialActionID: initialID,
	}, keys)
	if err != nil {
		return err
	}

	c.sessionKey = key
	c.expectedID = message.NewActionCounter(initialID).Current()

	s.mu.Lock()
	s.stats.Authentications++
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debugf("issued challenge, initial action id %d", initialID)
	}
	return c.t.Send(ctx, raw)
}

func (c *simConn) handleCommand(ctx context.Context, frame *message.Frame) error {
	s := c.sim
	if c.sessionKey == nil {
		c.sendError(ctx, "not authenticated")
		return fmt.Errorf("%w: command before AUTH", ErrProtocol)
	}

	var cmd message.Command
	if err := message.OpenFrame(frame, s.keys.AuthKey(), c.sessionKey, &cmd); err != nil {
		c.sendError(ctx, "authentication failed")
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if !cmd.Action.Type.IsValid() {
		c.sendError(ctx, "unknown action")
		return fmt.Errorf("%w: action %q", ErrProtocol, cmd.Action.Type)
	}
	if cmd.Action.ID != c.expectedID {
		c.sendError(ctx, "invalid action id")
		return fmt.Errorf("%w: action id %d, want %d", ErrProtocol, cmd.Action.ID, c.expectedID)
	}
	c.expectedID = message.NewActionCounter(cmd.Action.ID).Current()

	body, faults := s.execute(cmd.Action.Type, cmd.Action.ID)
	if s.log != nil {
		s.log.Debugf("%s id=%d -> %s", cmd.Action.Type, cmd.Action.ID, body.State)
	}
	if faults.IgnoreCommands {
		return nil
	}
	if faults.StaleResponseID {
		stale := (cmd.Action.ID + message.MaxActionID - 1) % message.MaxActionID
		body.ID = &stale
	}

	macKey := s.keys.AuthKey()
	if faults.BadResponseMAC {
		wrong, err := wrongMACKeys(s.keys)
		if err != nil {
			return err
		}
		macKey = wrong.AuthKey()
	}
	resp, err := message.EncryptFrame(message.Response{Response: body}, c.sessionKey, macKey)
	if err != nil {
		return err
	}
	raw, err := message.SealEnvelope(resp)
	if err != nil {
		return err
	}
	return c.t.Send(ctx, raw)
}

// sendError reports an error to the peer, best effort.
func (c *simConn) sendError(ctx context.Context, msg string) {
	raw, err := message.CanonicalJSON(message.Envelope{
		Type:         message.MessageTypeError,
		ErrorMessage: msg,
	})
	if err != nil {
		return
	}
	_ = c.t.Send(ctx, raw)
}

// wrongMACKeys returns key material with the same secret key and a
// different auth key.
func wrongMACKeys(keys *session.KeyMaterial) (*session.KeyMaterial, error) {
	auth := append([]byte(nil), keys.AuthKey()...)
	for i := range auth {
		auth[i] ^= 0xFF
	}
	return session.NewKeyMaterial(keys.SecretKey(), auth)
}
