package device

import "errors"

// Simulator errors.
var (
	// ErrInvalidConfig is returned when SimulatorConfig validation fails.
	ErrInvalidConfig = errors.New("device: invalid configuration")

	// ErrProtocol is returned by Serve when the peer violates the protocol.
	ErrProtocol = errors.New("device: protocol violation")

	// ErrClosed is returned by Serve after the simulator is closed.
	ErrClosed = errors.New("device: simulator closed")
)
