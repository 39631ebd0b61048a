package securechannel

import "errors"

// Handshake errors.
var (
	// ErrAuthenticationFailed is returned when the challenge cannot be
	// authenticated or decrypted. It is combined with the cause, for
	// example message.ErrMACMismatch.
	ErrAuthenticationFailed = errors.New("securechannel: authentication failed")

	// ErrMalformedChallenge is returned when a decrypted challenge lacks a
	// usable session key or initial action id.
	ErrMalformedChallenge = errors.New("securechannel: malformed challenge")

	// ErrInvalidState is returned when a Negotiator method is called out of
	// order.
	ErrInvalidState = errors.New("securechannel: invalid handshake state")

	// ErrTimeout is returned when the challenge does not arrive in time.
	ErrTimeout = errors.New("securechannel: handshake timed out")

	// ErrTransport is returned when the transport fails mid-handshake.
	ErrTransport = errors.New("securechannel: transport failure")
)
