package ws

import (
	"encoding/json"
	"log/slog"
	"quiz-lab/domain"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one websocket connection attached to a room. send is only
// touched under the hub lock.
type Client struct {
	conn     *websocket.Conn
	log      *slog.Logger
	room     domain.RoomCode
	identity domain.Identity
	ref      string
	send     chan []byte
	closed   bool
}

func NewClient(conn *websocket.Conn, log *slog.Logger, room domain.RoomCode, identity domain.Identity, ref string) *Client {
	return &Client{
		conn:     conn,
		log:      log,
		room:     room,
		identity: identity,
		ref:      ref,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) enqueue(data []byte) bool {
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump decodes inbound frames until the connection fails.
func (c *Client) ReadPump(handle func(c *Client, msg Envelope)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("Unexpected websocket close", "room", c.room, "player", c.identity.ID, "error", err)
			}
			return
		}
		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("Ignoring malformed frame", "room", c.room, "player", c.identity.ID, "error", err)
			continue
		}
		handle(c, msg)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
