// internal/websocket/client.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one console connection belonging to an authenticated identity.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	identityID int64
	sessionID  string
	send       chan *Event
}

func NewClient(hub *Hub, conn *websocket.Conn, identityID int64, sessionID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		identityID: identityID,
		sessionID:  sessionID,
		send:       make(chan *Event, 16),
	}
}

// Send queues an event without blocking the hub. A client that cannot keep
// up gets dropped instead of stalling everyone else.
func (c *Client) Send(event *Event) {
	select {
	case c.send <- event:
	default:
		go func() { c.hub.unregister <- c }()
	}
}

// ReadPump drains inbound frames. Clients never send anything we act on;
// reading is only needed to process pongs and detect the close.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump flushes queued events and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
