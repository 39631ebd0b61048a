package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame is one encrypted, authenticated unit. All fields are standard
// base64 strings exactly as they appear on the wire.
type Frame struct {
	IV      string
	Payload string
	MAC     string
}

// FrameData is the MAC-covered part of a frame. Field order is the canonical
// serialization order and must not change.
type FrameData struct {
	IV      string `json:"iv"`
	Payload string `json:"payload"`
}

// Data returns the MAC-covered part of the frame.
func (f *Frame) Data() FrameData {
	return FrameData{IV: f.IV, Payload: f.Payload}
}

// Envelope is the top-level wire message.
//
// Field order matches the wire schema:
//
//	{"type":"AUTH"}
//	{"type":"ENCRYPTED","data":{"iv":..,"payload":..},"mac":..}
type Envelope struct {
	Type         MessageType `json:"type"`
	Data         *FrameData  `json:"data,omitempty"`
	MAC          string      `json:"mac,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// Frame extracts the encrypted frame from an ENCRYPTED envelope.
func (e *Envelope) Frame() (*Frame, error) {
	if e.Type != MessageTypeEncrypted {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedMessage, e.Type, MessageTypeEncrypted)
	}
	if e.Data == nil || e.Data.IV == "" || e.Data.Payload == "" || e.MAC == "" {
		return nil, fmt.Errorf("%w: encrypted envelope missing data or mac", ErrMalformedEnvelope)
	}
	return &Frame{IV: e.Data.IV, Payload: e.Data.Payload, MAC: e.MAC}, nil
}

// Action is the body of an outgoing command.
type Action struct {
	Type CommandKind `json:"type"`
	ID   uint32      `json:"id"`
}

// Command is the decrypted plaintext of a command frame.
type Command struct {
	Action Action `json:"action"`
}

// ResponseBody is the body of a decrypted device response. Only State is
// required by the client; the other fields are optional on the wire.
type ResponseBody struct {
	Type           CommandKind `json:"type,omitempty"`
	ID             *uint32     `json:"id,omitempty"`
	Success        *bool       `json:"success,omitempty"`
	State          string      `json:"state,omitempty"`
	RelayTriggered bool        `json:"relayTriggered,omitempty"`
	ErrorCode      string      `json:"errorCode,omitempty"`
}

// Response is the decrypted plaintext of a response frame.
type Response struct {
	Response *ResponseBody `json:"response,omitempty"`
}

// CanonicalJSON serializes v as compact JSON with struct fields in declared
// order and without HTML escaping. This is the byte string that gets
// encrypted and, for FrameData, MAC'd.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder always terminates with a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// AuthRequest returns the unencrypted handshake request bytes.
func AuthRequest() []byte {
	b, _ := CanonicalJSON(Envelope{Type: MessageTypeAuth})
	return b
}

// SealEnvelope wraps a frame into ENCRYPTED envelope bytes.
func SealEnvelope(f *Frame) ([]byte, error) {
	data := f.Data()
	return CanonicalJSON(Envelope{
		Type: MessageTypeEncrypted,
		Data: &data,
		MAC:  f.MAC,
	})
}

// ParseEnvelope decodes a raw wire message.
//
// ERROR messages from the device are returned as ErrDeviceError carrying the
// device's message.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if env.Type == MessageTypeError {
		return &env, fmt.Errorf("%w: %s", ErrDeviceError, env.ErrorMessage)
	}
	return &env, nil
}

// ParseFrame decodes a raw wire message that must be an ENCRYPTED envelope.
func ParseFrame(raw []byte) (*Frame, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return env.Frame()
}
