package securechannel

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/backkem/remootio/pkg/crypto"
	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/session"
)

// Challenge is the decrypted handshake challenge.
type Challenge struct {
	SessionKey      []byte
	InitialActionID uint32
}

// challengeMessage is the challenge plaintext. Pointer fields distinguish
// missing values from zero values.
type challengeMessage struct {
	Challenge *challengeBody `json:"challenge"`
}

type challengeBody struct {
	SessionKey      *string      `json:"sessionKey"`
	InitialActionID *json.Number `json:"initialActionId"`
}

// ParseChallenge decodes and validates decrypted challenge plaintext.
func ParseChallenge(plaintext []byte) (Challenge, error) {
	var msg challengeMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return Challenge{}, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	if msg.Challenge == nil {
		return Challenge{}, fmt.Errorf("%w: missing challenge object", ErrMalformedChallenge)
	}

	body := msg.Challenge
	if body.SessionKey == nil || *body.SessionKey == "" {
		return Challenge{}, fmt.Errorf("%w: missing sessionKey", ErrMalformedChallenge)
	}
	key, err := base64.StdEncoding.DecodeString(*body.SessionKey)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: sessionKey: %v", ErrMalformedChallenge, err)
	}
	if !crypto.ValidKeySize(len(key)) {
		return Challenge{}, fmt.Errorf("%w: sessionKey is %d bytes", ErrMalformedChallenge, len(key))
	}

	if body.InitialActionID == nil {
		return Challenge{}, fmt.Errorf("%w: missing initialActionId", ErrMalformedChallenge)
	}
	id, err := body.InitialActionID.Int64()
	if err != nil || id < 0 || id >= int64(message.MaxActionID) {
		return Challenge{}, fmt.Errorf("%w: initialActionId %q out of range", ErrMalformedChallenge, body.InitialActionID.String())
	}

	return Challenge{SessionKey: key, InitialActionID: uint32(id)}, nil
}

// SealChallenge builds the ENCRYPTED challenge envelope a device sends in
// reply to AUTH. The payload is encrypted with the secret key and MAC'd with
// the auth key.
func SealChallenge(ch Challenge, keys *session.KeyMaterial) ([]byte, error) {
	if !crypto.ValidKeySize(len(ch.SessionKey)) {
		return nil, fmt.Errorf("%w: session key is %d bytes", message.ErrInvalidKeyLength, len(ch.SessionKey))
	}
	sessionKey := base64.StdEncoding.EncodeToString(ch.SessionKey)
	initialID := json.Number(fmt.Sprint(ch.InitialActionID))

	frame, err := message.EncryptFrame(challengeMessage{
		Challenge: &challengeBody{
			SessionKey:      &sessionKey,
			InitialActionID: &initialID,
		},
	}, keys.SecretKey(), keys.AuthKey())
	if err != nil {
		return nil, err
	}
	return message.SealEnvelope(frame)
}
