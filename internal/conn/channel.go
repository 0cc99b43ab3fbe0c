package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channel is an open duplex connection carrying one envelope per message.
type Channel interface {
	// ReadMessage blocks for the next message. A clean close is reported
	// as a *CloseError; anything else is an abrupt failure.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}

// CloseError reports that the peer closed the channel with a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("channel closed (code %d)", e.Code)
	}
	return fmt.Sprintf("channel closed (code %d): %s", e.Code, e.Reason)
}

// WebsocketDialer dials backend websocket endpoints.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial opens a websocket connection to url.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Channel, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	c, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsChannel{conn: c}, nil
}

// wsChannel adapts a gorilla connection. Writes are serialised because the
// connection supports one concurrent writer.
type wsChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsChannel) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsChannel) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// closeGrace bounds how long Close waits to send the close frame.
const closeGrace = time.Second

func (c *wsChannel) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	c.writeMu.Unlock()
	return c.conn.Close()
}
