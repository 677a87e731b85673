package websocket

import (
	"fmt"
	"log/slog"

	"oscbridge/internal/metrics"
	"oscbridge/internal/osc"
)

// Broadcaster fans decoded messages out to every open client. Each message is
// serialized once and the same frame is queued for every client; a slow or
// dead client never holds up the others.
type Broadcaster struct {
	hub     *Hub
	logger  *slog.Logger
	metrics *metrics.Metrics
	debug   bool // log every relayed message
}

func NewBroadcaster(hub *Hub, debug bool, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		hub:     hub,
		logger:  logger,
		metrics: m,
		debug:   debug,
	}
}

// Deliver serializes msg and queues it for every client open at the time of
// the call. It never blocks on a client.
func (b *Broadcaster) Deliver(msg *osc.Message) error {
	frame, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", msg.Address, err)
	}
	b.metrics.MessagesRelayed.Inc()

	queued := 0
	for _, c := range b.hub.Snapshot() {
		if c.Enqueue(frame) {
			queued++
		}
	}

	if b.debug {
		b.logger.Debug("osc_message_relayed",
			"address", msg.Address,
			"type_tags", msg.TypeTags(),
			"payload", string(frame),
			"clients", queued,
		)
	}
	return nil
}
