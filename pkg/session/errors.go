package session

import (
	"errors"

	"github.com/backkem/remootio/pkg/message"
)

// Session package errors.
var (
	// ErrInvalidKeyLength is returned when a key is not a valid AES key length.
	// It is the same value as message.ErrInvalidKeyLength.
	ErrInvalidKeyLength = message.ErrInvalidKeyLength

	// ErrInvalidKeyEncoding is returned when a key is not valid hex.
	ErrInvalidKeyEncoding = errors.New("session: key is not valid hex")

	// ErrInvalidActionID is returned when an initial action id is out of range.
	ErrInvalidActionID = errors.New("session: action id out of range")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session: session closed")
)
