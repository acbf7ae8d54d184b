package signaling

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second
)

// Dialer opens signaling connections against one relay.
type Dialer struct {
	BaseURL          string        // relay base, see BuildURL
	Token            string        // optional auth token
	Header           http.Header   // extra handshake headers
	HandshakeTimeout time.Duration // defaults to 10s
}

// Dial connects to the room endpoint for (roomID, clientID). The returned
// Conn is open; call Listen to start receiving.
func (d *Dialer) Dial(ctx context.Context, roomID, clientID string) (*Conn, error) {
	target, err := BuildURL(d.BaseURL, roomID, clientID, d.Token)
	if err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	ws, resp, err := dialer.DialContext(ctx, target, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to signaling relay (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to signaling relay: %w", err)
	}

	return newConn(ws), nil
}

// Conn is one open signaling channel.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	listenOnce sync.Once
	closeOnce  sync.Once
	closing    chan struct{}
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closing: make(chan struct{})}
}

// Send writes msg as one JSON text frame. Safe for concurrent use.
func (c *Conn) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Listen starts the read loop. onMessage receives every raw frame in
// arrival order; onClose runs once when the loop ends, with nil for a normal
// close (either side) and the read error otherwise. Only the first call has
// an effect.
func (c *Conn) Listen(onMessage func([]byte), onClose func(error)) {
	c.listenOnce.Do(func() {
		go c.watch(onMessage, onClose)
	})
}

func (c *Conn) watch(onMessage func([]byte), onClose func(error)) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if onClose != nil {
				onClose(c.classify(err))
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// classify maps a read error to nil when the channel ended normally.
func (c *Conn) classify(err error) error {
	select {
	case <-c.closing:
		return nil
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// Close sends a normal close frame and closes the socket. Safe to call
// multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)

		// Best effort: the relay may already be gone.
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))

		err = c.ws.Close()
	})
	return err
}
