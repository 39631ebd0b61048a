package remootio

import (
	"fmt"
	"time"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/transport"
	"github.com/pion/logging"
)

// DefaultPort is the device API port.
const DefaultPort = transport.DefaultPort

// DefaultResponseTimeout bounds the handshake and every command exchange.
const DefaultResponseTimeout = 5 * time.Second

// DefaultName is the name used when none is configured.
const DefaultName = "Garage Door"

// ClientConfig holds all configuration for a Client.
type ClientConfig struct {
	// Device - Required unless Dialer is set
	Host string // Device host name or IP address
	Port int    // API port (default: 8080)

	// Keys - Required, lowercase hex as shown in the Remootio app
	SecretKey string // API secret key, decrypts the handshake challenge
	AuthKey   string // API auth key, authenticates every frame

	// Optional
	Name            string        // Human-readable name (default: "Garage Door")
	ResponseTimeout time.Duration // Handshake and command timeout (default: 5s)

	// Callbacks - Optional. Called with the client busy; must not call
	// back into the Client's operations.
	OnStateChanged func(state message.DeviceState)

	// Advanced - Testing / custom transports
	Dialer transport.Dialer // Overrides the WebSocket dialer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *ClientConfig) Validate() error {
	if c.Host == "" && c.Dialer == nil {
		return ErrHostRequired
	}
	if c.SecretKey == "" || c.AuthKey == "" {
		return ErrKeysRequired
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ResponseTimeout < 0 {
		return fmt.Errorf("%w: negative response timeout", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *ClientConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
}
