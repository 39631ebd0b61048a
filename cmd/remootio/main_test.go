package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/backkem/remootio/pkg/device"
	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/remootio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "00112233445566778899aabbccddeeff"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Actions(t *testing.T) {
	sim, err := device.NewSimulator(device.SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex})
	require.NoError(t, err)
	defer sim.Close()
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	common := []string{
		"--host", u.Hostname(), "--port", u.Port(),
		"--secret-key", testKeyHex, "--auth-key", testKeyHex,
		"--name", "Test Door", "--log-level", "disabled",
	}

	tests := []struct {
		action string
		want   string
	}{
		{"query", "Test Door: closed\n"},
		{"trigger", "Test Door: open\n"},
		{"close", "Test Door: closed\n"},
		{"open", "Test Door: open\n"},
	}
	for _, tt := range tests {
		out, err := runCLI(t, append([]string{tt.action}, common...)...)
		require.NoError(t, err, tt.action)
		assert.Equal(t, tt.want, out, tt.action)
	}
	assert.Equal(t, message.DeviceStateOpen, sim.State())
	assert.Equal(t, 4, sim.Stats().Authentications, "one session per invocation")
}

func TestCLI_WrongKey(t *testing.T) {
	sim, err := device.NewSimulator(device.SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex})
	require.NoError(t, err)
	defer sim.Close()
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	_, err = runCLI(t, "query", "--host", u.Hostname(), "--port", u.Port(),
		"--secret-key", testKeyHex, "--auth-key", "ffeeddccbbaa99887766554433221100",
		"--log-level", "disabled")
	assert.ErrorContains(t, err, "authentication failed")
}

func TestCLI_MissingKeys(t *testing.T) {
	_, err := runCLI(t, "query", "--host", "127.0.0.1", "--log-level", "disabled")
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestShell_Exec(t *testing.T) {
	sim, err := device.NewSimulator(device.SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex})
	require.NoError(t, err)
	defer sim.Close()
	dialer := sim.PipeDialer()
	defer dialer.Close()

	client, err := remootio.NewClient(remootio.ClientConfig{
		Name:      "Shell Door",
		SecretKey: testKeyHex,
		AuthKey:   testKeyHex,
		Dialer:    dialer,
	})
	require.NoError(t, err)
	defer client.Close()
	cover := remootio.NewCover(client)

	var out bytes.Buffer
	sh := &shell{client: client, cover: cover, out: &out}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.True(t, sh.exec(ctx, ""))
	assert.True(t, sh.exec(ctx, "query"))
	assert.Contains(t, out.String(), "State: closed")

	out.Reset()
	assert.True(t, sh.exec(ctx, "t"))
	assert.Contains(t, out.String(), "State: open")

	out.Reset()
	assert.True(t, sh.exec(ctx, "status"))
	assert.Contains(t, out.String(), "Available: true")
	assert.Contains(t, out.String(), "next action id")

	out.Reset()
	assert.True(t, sh.exec(ctx, "auth"))
	assert.Contains(t, out.String(), "Session ")

	out.Reset()
	assert.True(t, sh.exec(ctx, "bogus"))
	assert.Contains(t, out.String(), "Unknown command: bogus")

	assert.False(t, sh.exec(ctx, "quit"))
	assert.Equal(t, 2, sim.Stats().Authentications)
}
