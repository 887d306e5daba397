package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Message types re-exported so callers do not import gorilla directly.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Connection wraps a gorilla websocket connection with serialized writes
// and idle tracking. Control frames travel as text messages, audio as
// binary messages.
type Connection struct {
	id         string
	socket     *websocket.Conn
	mu         sync.Mutex
	closed     atomic.Bool
	lastActive atomic.Int64
}

// NewConnection creates a tracked websocket connection.
func NewConnection(id string, socket *websocket.Conn) *Connection {
	conn := &Connection{
		id:     id,
		socket: socket,
	}
	conn.touch()
	return conn
}

// WriteMessage sends a message to the client.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection %s already closed", c.id)
	}

	if err := c.socket.WriteMessage(messageType, data); err != nil {
		return err
	}
	return nil
}

// WriteText sends a JSON control frame.
func (c *Connection) WriteText(data []byte) error {
	return c.WriteMessage(websocket.TextMessage, data)
}

// WriteBinary sends a raw audio frame.
func (c *Connection) WriteBinary(data []byte) error {
	return c.WriteMessage(websocket.BinaryMessage, data)
}

// ReadMessage receives the next message from the client and refreshes
// the idle clock.
func (c *Connection) ReadMessage() (int, []byte, error) {
	messageType, payload, err := c.socket.ReadMessage()
	if err == nil {
		c.touch()
	}
	return messageType, payload, err
}

// Close terminates the underlying websocket connection.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.socket.Close()
}

// GetID returns the connection identifier.
func (c *Connection) GetID() string {
	return c.id
}

// IsClosed reports whether the connection has already been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// GetLastActiveTime exposes when the client last sent anything.
func (c *Connection) GetLastActiveTime() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// IsStale checks whether the connection has been idle for longer than timeout.
func (c *Connection) IsStale(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return time.Since(c.GetLastActiveTime()) > timeout
}

// Touch refreshes the idle clock. Used when activity arrives through a
// side channel such as a heartbeat reply.
func (c *Connection) Touch() {
	c.touch()
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}
