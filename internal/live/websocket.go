package live

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/moonlink/internal/infra/buildinfo"
)

// closeWriteWait bounds the close handshake write.
const closeWriteWait = time.Second

// WebSocketDialer dials the push channel with gorilla/websocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// DialerOption configures a WebSocketDialer.
type DialerOption func(*websocket.Dialer)

// WithTLSConfig sets the TLS client config for wss endpoints. A nil config
// keeps the Go defaults.
func WithTLSConfig(cfg *tls.Config) DialerOption {
	return func(d *websocket.Dialer) {
		if cfg != nil {
			d.TLSClientConfig = cfg
		}
	}
}

// NewWebSocketDialer returns a dialer with the given handshake timeout.
func NewWebSocketDialer(handshakeTimeout time.Duration, opts ...DialerOption) *WebSocketDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	for _, opt := range opts {
		opt(&d)
	}

	header := http.Header{}
	header.Set("User-Agent", buildinfo.UserAgent())
	return &WebSocketDialer{dialer: &d, header: header}
}

// Dial opens a connection to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket handshake: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// ReadMessage returns the next text or binary frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, toCloseError(err)
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends 1000 "User disconnect" and closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(CloseNormalClosure, UserDisconnectText)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// toCloseError maps a gorilla read error onto *CloseError. A close frame
// from the peer is clean; anything else is a drop.
func toCloseError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{
			Code:  ce.Code,
			Text:  ce.Text,
			Clean: ce.Code != websocket.CloseAbnormalClosure,
		}
	}
	return &CloseError{Code: CloseAbnormal, Text: err.Error(), Clean: false}
}
