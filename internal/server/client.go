package server

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/statcalc/internal/antispam"
	"github.com/lawnchairsociety/statcalc/internal/config"
)

const writeTimeout = 10 * time.Second

// Client is one WebSocket connection to the calculator.
type Client struct {
	id    string
	ip    string
	conn  *websocket.Conn
	saves *antispam.Tracker
	mu    sync.Mutex // serializes writes
}

func newClient(conn *websocket.Conn, ip string, cfg config.ServerConfig) *Client {
	if cfg.WebSocket.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.WebSocket.MaxMessageSize)
	}
	return &Client{
		id:   uuid.NewString(),
		ip:   ip,
		conn: conn,
		saves: antispam.NewTracker(antispam.Config{
			MaxEvents: cfg.SaveLimit.MaxSaves,
			Window:    cfg.SaveLimit.Window,
		}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Read blocks until the next non-blank message arrives.
func (c *Client) Read() ([]byte, error) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if message = bytes.TrimSpace(message); len(message) > 0 {
			return message, nil
		}
	}
}

// Send writes resp as a JSON text message.
func (c *Client) Send(resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(resp)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
