// Package signal is the WebSocket transport adapter: it owns the upgrade
// handshake, the per-connection read/write pumps, and the hub that fans
// events out to rooms.
package signal

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// wireConn is an indirection over *websocket.Conn to ease testing.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one client connection with a buffered outbound queue. The write
// pump drains the queue; TrySend never blocks.
type Conn struct {
	ws   wireConn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(ws wireConn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, 32),
	}
}

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}
