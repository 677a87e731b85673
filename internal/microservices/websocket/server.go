package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"oscbridge/internal/identity"
	"oscbridge/internal/logging"
	"oscbridge/internal/metrics"
	"oscbridge/internal/shared"
)

const readHeaderTimeout = 10 * time.Second

// Options tune the secure session acceptor.
type Options struct {
	QueueSize       int    // per-client outbound queue capacity
	HelpFile        string // served on plain GET; empty uses the built-in page
	MetricsEnabled  bool   // expose /metrics
	ShutdownTimeout time.Duration
}

// Server accepts TLS connections, upgrades them to WebSocket sessions and
// serves the help, health and metrics endpoints on the same listener.
type Server struct {
	addr     string
	identity *identity.Identity
	hub      *Hub
	opts     Options
	help     []byte
	logger   *slog.Logger
	metrics  *metrics.Metrics

	listener   net.Listener
	httpServer *http.Server
	started    time.Time
	shutdown   sync.Once
}

// NewServer prepares the acceptor. Nothing is bound until Listen or Serve.
func NewServer(addr string, id *identity.Identity, hub *Hub, opts Options, logger *slog.Logger, m *metrics.Metrics) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	help, err := loadHelp(opts.HelpFile)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:     addr,
		identity: id,
		hub:      hub,
		opts:     opts,
		help:     help,
		logger:   logger,
		metrics:  m,
	}
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		TLSConfig:         id.TLSConfig(),
		ReadHeaderTimeout: readHeaderTimeout,
		// HTTP/1.1 only; WebSocket upgrades do not run over h2
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
		// TLS handshake failures end up here and only cost that connection
		ErrorLog: logging.StdLogger(logger.With("component", "https"), slog.LevelWarn),
	}
	return s, nil
}

// Listen binds the TCP listener. A bind failure wraps shared.ErrBindFailed.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: failed to listen on TCP %s: %v", shared.ErrBindFailed, s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL is the address viewers connect to.
func (s *Server) URL() string {
	port := ""
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = fmt.Sprint(addr.Port)
	}
	return fmt.Sprintf("wss://%s/", net.JoinHostPort(s.identity.Address.String(), port))
}

// Router builds the gin engine serving every route of the listener.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.logger))

	ws := WSHandler(s.hub, s.opts.QueueSize, s.logger, s.metrics)
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		s.serveHelp(c)
	})
	r.GET("/help", s.serveHelp)
	r.GET("/healthz", s.serveHealth)
	if s.opts.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

func (s *Server) serveHelp(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.help)
}

func (s *Server) serveHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// Serve accepts connections until ctx is cancelled, then shuts down. It
// returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.started = time.Now()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("wss_shutdown_incomplete", "error", err.Error())
		}
	}()

	s.logger.Info("wss_listener_started",
		"addr", s.listener.Addr().String(),
		"url", s.URL(),
	)

	// certificate and key come from TLSConfig
	err := s.httpServer.ServeTLS(s.listener, "", "")
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("wss_listener_stopped")
		return nil
	}
	return fmt.Errorf("wss listener failed: %w", err)
}

// Shutdown stops accepting, waits for in-flight HTTP requests and closes
// every WebSocket session. Hijacked connections are not tracked by the
// http.Server, so the hub closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		err = s.httpServer.Shutdown(ctx)
		s.hub.CloseAll()
	})
	return err
}

// Close releases a listener that was bound but never served.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
