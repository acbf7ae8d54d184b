package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/classcall/internal/util"
)

// client is one participant connection. send is closed by the hub when the
// participant is removed.
type client struct {
	id     string
	roomID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// readPump forwards inbound frames until the connection fails, then removes
// the participant.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.LogWarning("[relay] %s/%s: read: %v", c.roomID, c.id, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.hub.forward(c, frame)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				util.LogWarning("[relay] %s/%s: write: %v", c.roomID, c.id, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
