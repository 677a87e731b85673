package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"oscbridge/internal/metrics"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// viewers are plain pages opened from anywhere on the LAN; no origin policy
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades a TLS request to a WebSocket session and registers the
// resulting client with the hub.
func WSHandler(hub *Hub, queueSize int, logger *slog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := NewClient(c.Request.RemoteAddr, queueSize, hub, logger, m)

		if c.Request.TLS == nil {
			m.HandshakeFailures.WithLabelValues("tls").Inc()
			c.AbortWithStatusJSON(http.StatusUpgradeRequired, gin.H{"error": "TLS required"})
			client.Close("tls_required")
			return
		}
		client.advance(StateTLSHandshake)
		client.advance(StateWSHandshake)

		// upgrade HTTP connection to WebSocket; on failure the upgrader has
		// already answered with an HTTP error
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.HandshakeFailures.WithLabelValues("websocket").Inc()
			logger.Warn("websocket_upgrade_failed",
				"remote_addr", c.Request.RemoteAddr,
				"error", err.Error(),
			)
			client.Close("upgrade_failed")
			return
		}
		client.Conn = conn

		if err := hub.Register(client); err != nil {
			logger.Error("client_register_failed",
				"client_id", client.ID,
				"error", err.Error(),
			)
			client.Close("register_failed")
			return
		}

		// start goroutines for read and write pumps
		go client.WritePump()
		go client.ReadPump()
	}
}
