// Package integration provides end-to-end tests of the client against a
// simulated device over real WebSocket connections.
package integration

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/backkem/remootio/pkg/device"
	"github.com/backkem/remootio/pkg/remootio"
	"github.com/pion/logging"
)

// TestPairConfig configures a test pair.
type TestPairConfig struct {
	// SecretKey and AuthKey are shared by device and client unless the
	// Client* overrides are set.
	SecretKey string
	AuthKey   string

	// ClientSecretKey and ClientAuthKey override the client's keys.
	ClientSecretKey string
	ClientAuthKey   string

	// InitialActionID fixes the device's initial action id.
	InitialActionID *uint32

	// ResponseTimeout for the client (default: 1s).
	ResponseTimeout time.Duration

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns default configuration for test pairs.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		SecretKey:       "00112233445566778899aabbccddeeff",
		AuthKey:         "00112233445566778899aabbccddeeff",
		ResponseTimeout: time.Second,
	}
}

// TestPair is a simulated device served over HTTP and a client pointed at it.
//
// Example usage:
//
//	pair := NewTestPair(t)
//	defer pair.Close()
//	state, err := pair.Client.Do(ctx, message.CommandQuery)
type TestPair struct {
	// Device is the simulated device.
	Device *device.Simulator

	// Server serves the device's WebSocket endpoint.
	Server *httptest.Server

	// Client is connected to Server over WebSocket.
	Client *remootio.Client

	t *testing.T
}

// NewTestPair creates a pair with the default configuration.
func NewTestPair(t *testing.T) *TestPair {
	return NewTestPairWithConfig(t, DefaultTestPairConfig())
}

// NewTestPairWithConfig creates a pair with the given configuration.
func NewTestPairWithConfig(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	sim, err := device.NewSimulator(device.SimulatorConfig{
		SecretKey:       config.SecretKey,
		AuthKey:         config.AuthKey,
		InitialActionID: config.InitialActionID,
		LoggerFactory:   loggerFactory,
	})
	if err != nil {
		t.Fatalf("failed to create simulator: %v", err)
	}
	srv := httptest.NewServer(sim.Handler())

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse server port: %v", err)
	}

	secretKey, authKey := config.SecretKey, config.AuthKey
	if config.ClientSecretKey != "" {
		secretKey = config.ClientSecretKey
	}
	if config.ClientAuthKey != "" {
		authKey = config.ClientAuthKey
	}

	client, err := remootio.NewClient(remootio.ClientConfig{
		Host:            u.Hostname(),
		Port:            port,
		Name:            "Integration Door",
		SecretKey:       secretKey,
		AuthKey:         authKey,
		ResponseTimeout: config.ResponseTimeout,
		LoggerFactory:   loggerFactory,
	})
	if err != nil {
		srv.Close()
		t.Fatalf("failed to create client: %v", err)
	}

	return &TestPair{
		Device: sim,
		Server: srv,
		Client: client,
		t:      t,
	}
}

// Context returns a context bounded for one test step.
func (p *TestPair) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Close tears down the client, device and server.
func (p *TestPair) Close() {
	p.Client.Close()
	p.Device.Close()
	p.Server.Close()
}
