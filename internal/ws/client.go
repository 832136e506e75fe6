package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendBufferSize = 32
)

// Client is one websocket connection attached to a room
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	username string
	logger   *zap.Logger
}

// clientMessage is the frame a client sends to the server
type clientMessage struct {
	Text string `json:"text"`
}

// enqueue queues an encoded frame for delivery. A client whose buffer is
// full misses the frame rather than stalling the hub.
func (c *Client) enqueue(frame Frame) {
	data, err := encodeFrame(frame)
	if err != nil {
		c.logger.Error("failed_to_encode_chat_frame", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("chat_client_send_buffer_full",
			zap.String("room", c.room),
			zap.String("username", c.username),
		)
	}
}

// detach hands the client back to the hub, or returns immediately when the
// hub has already stopped
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump reads client frames and forwards them to the hub. It exits on
// read error and triggers unregistration.
func (c *Client) readPump() {
	defer func() {
		c.detach()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("chat_read_failed",
					zap.String("username", c.username),
					zap.Error(err),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Text == "" {
			continue
		}

		in := inbound{
			client: c,
			message: Message{
				User: c.username,
				Text: msg.Text,
				Time: time.Now().UTC(),
			},
		}
		select {
		case c.hub.incoming <- in:
		case <-c.hub.done:
			return
		}
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings
func (c *Client) writePump() {
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
