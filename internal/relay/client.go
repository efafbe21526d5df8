package relay

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"syncspace/backend/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // whole file trees travel in sync messages
)

// Client is one websocket connection as the hub sees it.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	SocketID string
	RoomID   string
	UserID   string
	Username string
	// Joined flips when the join_request arrives; only joined clients count
	// toward the roster and receive room traffic.
	Joined bool
}

// User returns the client's wire identity.
func (c *Client) User() protocol.User {
	return protocol.User{SocketID: c.SocketID, UserID: c.UserID, Username: c.Username}
}

// ReadPump moves frames from the socket into the hub until the connection
// drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Hub] Read error from %s: %v", c.SocketID, err)
			}
			return
		}
		c.Hub.Broadcast <- &Message{RoomID: c.RoomID, Data: data, Sender: c}
	}
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
