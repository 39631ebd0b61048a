package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport
	// or the peer closed the connection.
	ErrClosed = errors.New("transport: closed")

	// ErrDialFailed is returned when a connection cannot be established.
	ErrDialFailed = errors.New("transport: dial failed")

	// ErrSendFailed is returned when sending a message fails.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrMessageTooLarge is returned when a message exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("transport: message too large")
)
