package remootio

import (
	"errors"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/securechannel"
)

// Client errors.
var (
	// ErrInvalidConfig is returned when ClientConfig validation fails.
	ErrInvalidConfig = errors.New("remootio: invalid configuration")

	// ErrHostRequired is returned when neither Host nor Dialer is set.
	ErrHostRequired = errors.New("remootio: host is required")

	// ErrKeysRequired is returned when SecretKey or AuthKey is empty.
	ErrKeysRequired = errors.New("remootio: secret key and auth key are required")

	// ErrInvalidPort is returned when Port is out of range.
	ErrInvalidPort = errors.New("remootio: port must be 1-65535")

	// ErrNotAuthenticated is returned when a command is sent without a session.
	ErrNotAuthenticated = errors.New("remootio: not authenticated")

	// ErrInvalidCommand is returned for an unknown command kind.
	ErrInvalidCommand = errors.New("remootio: invalid command")

	// ErrMalformedResponse is returned when a decrypted response has no
	// response object.
	ErrMalformedResponse = errors.New("remootio: malformed response")

	// ErrCommandRejected is returned when the device answers success:false.
	ErrCommandRejected = errors.New("remootio: command rejected by device")

	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("remootio: client closed")
)

// Errors from the lower layers that callers commonly match on.
var (
	ErrAuthenticationFailed = securechannel.ErrAuthenticationFailed
	ErrMalformedChallenge   = securechannel.ErrMalformedChallenge
	ErrTimeout              = securechannel.ErrTimeout
	ErrTransport            = securechannel.ErrTransport
	ErrMACMismatch          = message.ErrMACMismatch
	ErrStaleResponse        = message.ErrStaleResponse
)
