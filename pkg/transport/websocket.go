package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// DefaultPort is the port Remootio devices serve their API on.
const DefaultPort = 8080

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 5 * time.Second

// WebSocketConfig configures a WebSocketDialer.
type WebSocketConfig struct {
	// Host is the device host name or IP address. Required.
	Host string

	// Port is the device API port (default: 8080).
	Port int

	// Path is the request path (default: "/").
	Path string

	// HandshakeTimeout bounds the opening handshake (default: 5s).
	HandshakeTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// WebSocketDialer dials ws://<host>:<port><path>.
type WebSocketDialer struct {
	url           string
	dialer        websocket.Dialer
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// NewWebSocketDialer creates a dialer for one device.
func NewWebSocketDialer(config WebSocketConfig) (*WebSocketDialer, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrDialFailed)
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Path == "" {
		config.Path = "/"
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Path:   config.Path,
	}

	d := &WebSocketDialer{
		url: u.String(),
		dialer: websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		loggerFactory: config.LoggerFactory,
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("transport-ws")
	}
	return d, nil
}

// URL returns the URL the dialer connects to.
func (d *WebSocketDialer) URL() string {
	return d.url
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	if d.log != nil {
		d.log.Debugf("dialing %s", d.url)
	}
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: %v (HTTP %d)", ErrDialFailed, d.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, d.url, err)
	}
	return NewWebSocket(conn, d.loggerFactory), nil
}

// WebSocket is a Transport over an established gorilla/websocket connection.
// Messages are sent as text frames; text and binary frames are received.
type WebSocket struct {
	*messageConn
	conn *websocket.Conn
}

// NewWebSocket wraps an established connection, client or server side.
// The WebSocket takes ownership of conn.
func NewWebSocket(conn *websocket.Conn, loggerFactory logging.LoggerFactory) *WebSocket {
	var log logging.LeveledLogger
	if loggerFactory != nil {
		log = loggerFactory.NewLogger("transport-ws")
	}

	conn.SetReadLimit(MaxMessageSize)

	ws := &WebSocket{conn: conn}
	ws.messageConn = newMessageConn(ws.read, ws.write, ws.closeConn, log)
	return ws
}

// RemoteAddr returns the peer address.
func (ws *WebSocket) RemoteAddr() net.Addr {
	return ws.conn.RemoteAddr()
}

func (ws *WebSocket) read() ([]byte, error) {
	for {
		mt, data, err := ws.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (ws *WebSocket) write(deadline time.Time, data []byte) error {
	if err := ws.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// closeConn sends a close frame best effort. WriteControl may run
// concurrently with WriteMessage.
func (ws *WebSocket) closeConn() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return ws.conn.Close()
}

var _ Transport = (*WebSocket)(nil)
