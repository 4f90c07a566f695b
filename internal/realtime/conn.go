package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendBufferSize = 64

// Conn is one attached WebSocket connection. All writes go through a buffered
// outbound channel drained by a single writer goroutine, so frames enqueued in
// order arrive in order and broadcasts never block on a slow peer.
type Conn struct {
	id uuid.UUID
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.New(),
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *Conn) ID() uuid.UUID { return c.id }

// enqueue is fire-and-forget: a full buffer or a closed connection drops the
// frame for this connection only.
func (c *Conn) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writeLoop drains the outbound channel onto the socket. It exits when the
// channel is closed or the first write fails; either way the socket is closed.
func (c *Conn) writeLoop() {
	for payload := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.ws.Close()
}
