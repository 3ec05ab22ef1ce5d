package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Degefa-Gomora/evangadiForum1/internal/config"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// Client is one websocket connection. Identity is nil until the
// connection identifies; anonymous connections may only observe.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	config  config.WebSocketConfig

	mu       sync.RWMutex
	identity *domain.Identity
}

// NewClient wraps an upgraded websocket connection.
func NewClient(id string, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, sendRate float64, sendBurst int) *Client {
	return &Client{
		id:      id,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		config:  cfg,
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the verified identity, or nil for anonymous
// connections.
func (c *Client) Identity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetIdentity attaches a verified identity to the connection.
func (c *Client) SetIdentity(identity *domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// AllowSend reports whether the connection is within its message flood
// budget.
func (c *Client) AllowSend() bool {
	return c.limiter.Allow()
}

// ReadPump reads inbound frames and hands them to handler. It owns the
// read side of the connection and unregisters the client on exit.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldConnectionID, c.id).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues an event for this connection. A connection whose
// buffer is full drops the event rather than blocking the caller.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
	default:
	}
	return nil
}
