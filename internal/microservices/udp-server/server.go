package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"oscbridge/internal/metrics"
	"oscbridge/internal/osc"
	"oscbridge/internal/shared"
)

// MaxDatagramSize covers the largest possible UDP payload.
const MaxDatagramSize = 65535

const (
	senderTimeout   = 5 * time.Minute
	cleanupInterval = time.Minute
)

// MessageHandler receives every successfully decoded message, in receive order.
type MessageHandler interface {
	Deliver(msg *osc.Message) error
}

// Server represents the UDP datagram listener
type Server struct {
	conn    *net.UDPConn
	handler MessageHandler
	senders *SenderTracker
	logger  *slog.Logger
	metrics *metrics.Metrics

	// decode failures are logged through a limiter so a flood of junk cannot
	// flood the log; suppressed counts what the limiter swallowed
	logLimiter *rate.Limiter
	suppressed atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer binds the UDP listener. A bind failure wraps shared.ErrBindFailed.
func NewServer(addr string, handler MessageHandler, logger *slog.Logger, m *metrics.Metrics) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve UDP address %q: %v", shared.ErrBindFailed, addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on UDP %s: %v", shared.ErrBindFailed, addr, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		conn:       conn,
		handler:    handler,
		senders:    NewSenderTracker(senderTimeout),
		logger:     logger,
		metrics:    m,
		logLimiter: rate.NewLimiter(rate.Limit(1), 5), // 1 line/sec with burst of 5
		done:       make(chan struct{}),
	}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Serve runs the receive loop until ctx is cancelled or Shutdown is called.
// It returns nil on shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("osc_listener_started", "addr", s.conn.LocalAddr().String())

	go s.senders.StartCleanupRoutine(cleanupInterval, s.done)
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()

	buffer := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if s.closed() || errors.Is(err, net.ErrClosed) {
				s.logger.Info("osc_listener_stopped")
				return nil
			}
			// a failed read loses one datagram at most; keep receiving
			if s.logLimiter.Allow() {
				s.logger.Error("osc_read_error", "error", err.Error())
			}
			continue
		}

		// decoding copies what it keeps, so the buffer can be reused
		s.handleDatagram(buffer[:n], addr)
	}
}

// handleDatagram decodes one datagram and hands the message to the relay
func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	s.metrics.DatagramsReceived.Inc()

	if s.senders.Touch(addr) {
		s.logger.Info("osc_sender_seen", "peer", addr.String())
	}

	msg, err := osc.Decode(data)
	if err != nil {
		s.reportDecodeError(err, addr, len(data))
		return
	}
	s.metrics.DatagramsDecoded.Inc()

	if err := s.handler.Deliver(msg); err != nil {
		s.logger.Error("relay_delivery_failed",
			"peer", addr.String(),
			"address", msg.Address,
			"error", err.Error(),
		)
	}
}

func (s *Server) reportDecodeError(err error, addr *net.UDPAddr, size int) {
	kind := decodeErrorKind(err)
	s.metrics.DecodeErrors.WithLabelValues(kind).Inc()

	if kind == "bundle" {
		if s.senders.WarnBundleOnce(addr) {
			s.logger.Warn("osc_bundle_ignored",
				"peer", addr.String(),
				"detail", "OSC bundles are not supported; further bundles from this sender are dropped silently",
			)
		}
		return
	}

	if !s.logLimiter.Allow() {
		s.suppressed.Add(1)
		return
	}
	s.logger.Warn("osc_datagram_dropped",
		"peer", addr.String(),
		"kind", kind,
		"size", size,
		"error", err.Error(),
		"suppressed_since_last", s.suppressed.Swap(0),
	)
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, osc.ErrUnsupportedBundle):
		return "bundle"
	case errors.Is(err, osc.ErrUnknownType):
		return "unknown_type"
	default:
		return "malformed"
	}
}

// SenderCount returns the number of OSC sources seen recently
func (s *Server) SenderCount() int {
	return s.senders.Count()
}

// Shutdown stops the receive loop and releases the socket
func (s *Server) Shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Server) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
