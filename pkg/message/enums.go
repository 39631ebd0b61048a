package message

// MaxActionID is the action id modulus. Ids live in [0, MaxActionID).
const MaxActionID uint32 = 0x7FFFFFFF

// MessageType is the top-level "type" field of a wire message.
type MessageType string

const (
	// MessageTypeAuth starts the handshake. Sent unencrypted.
	MessageTypeAuth MessageType = "AUTH"
	// MessageTypeEncrypted wraps an encrypted, authenticated frame.
	MessageTypeEncrypted MessageType = "ENCRYPTED"
	// MessageTypeError is an unencrypted error report from the device.
	MessageTypeError MessageType = "ERROR"
)

// String returns the wire name of the message type.
func (t MessageType) String() string {
	return string(t)
}

// CommandKind is the "type" of an encrypted action.
type CommandKind string

const (
	// CommandQuery asks for the current door state.
	CommandQuery CommandKind = "QUERY"
	// CommandTrigger pulses the actuator relay.
	CommandTrigger CommandKind = "TRIGGER"
	// CommandOpen opens the door if it is closed.
	CommandOpen CommandKind = "OPEN"
	// CommandClose closes the door if it is open.
	CommandClose CommandKind = "CLOSE"
)

// String returns the wire name of the command.
func (k CommandKind) String() string {
	return string(k)
}

// IsValid returns true if the command kind is a known command.
func (k CommandKind) IsValid() bool {
	switch k {
	case CommandQuery, CommandTrigger, CommandOpen, CommandClose:
		return true
	default:
		return false
	}
}

// ParseCommandKind maps a case-sensitive wire name to a CommandKind.
func ParseCommandKind(s string) (CommandKind, bool) {
	k := CommandKind(s)
	return k, k.IsValid()
}

// DeviceState is the door state reported in a response.
type DeviceState string

const (
	DeviceStateUnknown DeviceState = "unknown"
	DeviceStateOpen    DeviceState = "open"
	DeviceStateClosed  DeviceState = "closed"
)

// String returns the state name.
func (s DeviceState) String() string {
	if s == "" {
		return string(DeviceStateUnknown)
	}
	return string(s)
}

// ParseDeviceState maps a response "state" value to a DeviceState.
// Anything other than "open" or "closed" (including "no sensor") is unknown.
func ParseDeviceState(s string) DeviceState {
	switch DeviceState(s) {
	case DeviceStateOpen:
		return DeviceStateOpen
	case DeviceStateClosed:
		return DeviceStateClosed
	default:
		return DeviceStateUnknown
	}
}
