package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// outboundBufferSize bounds how far a subscriber may fall behind
	// before the hub evicts it.
	outboundBufferSize = 64

	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is one connected subscriber. Envelopes are queued without
// blocking; a sustained full buffer marks the client too slow and the
// hub drops it rather than stalling publishers.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan Envelope
	dropped atomic.Int64

	mu     sync.RWMutex
	topics map[string]struct{}
	closed bool

	once sync.Once
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan Envelope, outboundBufferSize),
		topics: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Queue enqueues without blocking. False means the envelope was not
// accepted, either because the buffer is full or the client is closed.
func (c *Client) Queue(msg Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped reports how many envelopes overflowed the outbound buffer.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// WriteLoop drains the outbound buffer to the socket, bounding every
// write and pinging idle connections so dead peers surface as write
// errors. It returns when the client closes or the peer stops
// accepting writes.
func (c *Client) WriteLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Close tears the client down once: further Queue calls are refused,
// the write loop drains out through a close frame, and the socket is
// released. Safe to call from the read loop and the hub concurrently.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) Subscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		c.topics[topic] = struct{}{}
	}
}

func (c *Client) Unsubscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.topics, topic)
	}
}

func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}
