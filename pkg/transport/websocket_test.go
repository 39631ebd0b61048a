package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoServer starts a WebSocket server that echoes every message back
// and returns a dialer config pointing at it.
func newEchoServer(t *testing.T) WebSocketConfig {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws := NewWebSocket(conn, nil)
		defer ws.Close()

		ctx := context.Background()
		for {
			data, err := ws.Receive(ctx)
			if err != nil {
				return
			}
			if err := ws.Send(ctx, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return WebSocketConfig{
		Host:          u.Hostname(),
		Port:          port,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	}
}

func TestNewWebSocketDialer(t *testing.T) {
	tests := []struct {
		name    string
		config  WebSocketConfig
		wantURL string
		wantErr error
	}{
		{
			name:    "defaults",
			config:  WebSocketConfig{Host: "192.168.1.50"},
			wantURL: "ws://192.168.1.50:8080/",
		},
		{
			name:    "custom port and path",
			config:  WebSocketConfig{Host: "garage.local", Port: 9000, Path: "/api"},
			wantURL: "ws://garage.local:9000/api",
		},
		{
			name:    "ipv6",
			config:  WebSocketConfig{Host: "fe80::1"},
			wantURL: "ws://[fe80::1]:8080/",
		},
		{
			name:    "missing host",
			config:  WebSocketConfig{},
			wantErr: ErrDialFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewWebSocketDialer(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, d.URL())
		})
	}
}

func TestWebSocket_Echo(t *testing.T) {
	d, err := NewWebSocketDialer(newEchoServer(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := d.Dial(ctx)
	require.NoError(t, err)
	defer tr.Close()

	for _, msg := range []string{`{"type":"AUTH"}`, `{"type":"ENCRYPTED"}`} {
		require.NoError(t, tr.Send(ctx, []byte(msg)))
		got, err := tr.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, msg, string(got))
	}
}

func TestWebSocket_ReceiveTimeout(t *testing.T) {
	d, err := NewWebSocketDialer(newEchoServer(t))
	require.NoError(t, err)

	tr, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebSocket_Close(t *testing.T) {
	d, err := NewWebSocketDialer(newEchoServer(t))
	require.NoError(t, err)

	tr, err := d.Dial(context.Background())
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tr.Send(context.Background(), []byte("x")), ErrClosed)
}

func TestWebSocket_DialRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	srv.Close()

	d, err := NewWebSocketDialer(WebSocketConfig{Host: u.Hostname(), Port: port})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = d.Dial(ctx)
	assert.ErrorIs(t, err, ErrDialFailed)
}

func TestWebSocket_NotUpgraded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	d, err := NewWebSocketDialer(WebSocketConfig{Host: u.Hostname(), Port: port})
	require.NoError(t, err)

	_, err = d.Dial(context.Background())
	assert.ErrorIs(t, err, ErrDialFailed)
	assert.Contains(t, err.Error(), "HTTP 404")
}
