package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"oscbridge/internal/metrics"
)

// Individual viewer connection. Frames flow one way: the relay pushes into
// the queue and WritePump drains it to the peer. Anything the peer sends is
// read and discarded so control frames keep being processed.

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // send pings before pong wait expires, 10% margin for jitter
	MaxMessageSize = 512                 // maximum inbound message size allowed from peer
)

// State is the lifecycle stage of a client connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateTLSHandshake
	StateWSHandshake
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateTLSHandshake:
		return "tls_handshake"
	case StateWSHandshake:
		return "ws_handshake"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Client struct {
	ID         string          // unique client ID
	RemoteAddr string          // peer address as seen by the listener
	Conn       *websocket.Conn // WebSocket connection; nil until the upgrade succeeds

	queue   *Queue
	hub     *Hub
	state   atomic.Int32
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a client in the Connecting state.
func NewClient(remoteAddr string, queueSize int, hub *Hub, logger *slog.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		queue:      NewQueue(queueSize),
		hub:        hub,
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// State returns the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// advance moves the client to a later state. Moving backwards or staying put
// is refused.
func (c *Client) advance(to State) bool {
	for {
		cur := c.state.Load()
		if int32(to) <= cur {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// Enqueue queues one frame for delivery without blocking. Frames for clients
// that are not open are refused.
func (c *Client) Enqueue(frame []byte) bool {
	if c.State() != StateOpen {
		return false
	}
	if c.queue.Push(frame) {
		c.metrics.QueueDrops.Inc()
	}
	return true
}

// Pending returns the number of frames waiting to be written.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// ReadPump consumes inbound frames until the peer goes away. Payloads are
// ignored; reading keeps pong and close handling alive.
func (c *Client) ReadPump() {
	defer c.Close("read_closed")

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("client_read_error",
					"client_id", c.ID,
					"error", err.Error(),
				)
			}
			return
		}
	}
}

// WritePump drains the queue to the peer in order and sends periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close("write_closed")
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.queue.Ready():
			for {
				frame, ok := c.queue.Pop()
				if !ok {
					break
				}
				c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
				if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.metrics.SendErrors.Inc()
					c.logger.Warn("client_write_error",
						"client_id", c.ID,
						"error", err.Error(),
					)
					return
				}
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close tears the connection down: Closing, removed from the hub, transport
// released, Closed. Safe to call more than once and from any goroutine.
func (c *Client) Close(reason string) {
	c.once.Do(func() {
		c.advance(StateClosing)
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
		c.advance(StateClosed)
		c.logger.Debug("client_closed",
			"client_id", c.ID,
			"remote_addr", c.RemoteAddr,
			"reason", reason,
			"dropped", c.queue.Dropped(),
		)
	})
}

// goAway sends a best-effort close frame before closing.
func (c *Client) goAway(reason string) {
	if c.Conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	c.Close(reason)
}
