package message

import "errors"

// Frame layer errors.
var (
	// Key errors
	ErrInvalidKeyLength = errors.New("message: invalid key length")

	// Decryption errors
	ErrPadding            = errors.New("message: invalid PKCS#7 padding")
	ErrMalformedPlaintext = errors.New("message: decrypted payload is not valid JSON")
	ErrMalformedFrame     = errors.New("message: malformed frame encoding")

	// Authentication errors
	ErrMACMismatch = errors.New("message: MAC verification failed")

	// Envelope errors
	ErrMalformedEnvelope = errors.New("message: malformed envelope")
	ErrUnexpectedMessage = errors.New("message: unexpected message type")
	ErrDeviceError       = errors.New("message: device reported an error")

	// Sequencing errors
	ErrStaleResponse = errors.New("message: response action id does not match request")
)
