package ws

import (
	"sync"
	"sync/atomic"
)

// Client is one live transport connection. Frames queued on it are written by
// the connection's write pump.
type Client struct {
	ID      string
	send    chan []byte
	dialect atomic.Int32

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

// Outbound is drained by the write pump; it is closed when the client closes.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

func (c *Client) Dialect() Dialect {
	return Dialect(c.dialect.Load())
}

func (c *Client) SetDialect(d Dialect) {
	c.dialect.Store(int32(d))
}

// enqueue never blocks. It reports false when the queue is full or closed.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the outbound queue. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
