package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"oscbridge/internal/metrics"
)

// Central registry of connected viewers. Registration, removal and snapshots
// all go through one RWMutex, so a snapshot never sees a half-registered or
// already-removed client.

var (
	ErrNotHandshaken = errors.New("client has not completed the websocket handshake")
	ErrDuplicateID   = errors.New("client id already registered")
)

type Hub struct {
	clients map[string]*Client // key: client ID
	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a client that finished its WebSocket handshake and marks it
// Open. The state change happens under the registry lock.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.State() != StateWSHandshake {
		return fmt.Errorf("%w: state %s", ErrNotHandshaken, c.State())
	}
	if _, exists := h.clients[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	if !c.advance(StateOpen) {
		return fmt.Errorf("%w: state %s", ErrNotHandshaken, c.State())
	}

	h.clients[c.ID] = c
	h.metrics.ClientsAccepted.Inc()
	h.metrics.ActiveClients.Set(float64(len(h.clients)))
	h.logger.Info("client_added",
		"client_id", c.ID,
		"remote_addr", c.RemoteAddr,
		"clients", len(h.clients),
	)
	return nil
}

// Unregister removes a client. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}
	delete(h.clients, c.ID)
	h.metrics.ActiveClients.Set(float64(len(h.clients)))
	h.logger.Info("client_removed",
		"client_id", c.ID,
		"remote_addr", c.RemoteAddr,
		"clients", len(h.clients),
	)
}

// Snapshot returns the clients that are Open right now.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.State() == StateOpen {
			clients = append(clients, c)
		}
	}
	return clients
}

// Get looks a client up by ID.
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every registered client with a going-away frame.
func (h *Hub) CloseAll() {
	// Close unregisters, so collect first and close outside the lock
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.goAway("server shutting down")
		h.logger.Info("client_connection_closed", "client_id", c.ID)
	}
}
