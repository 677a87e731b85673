// Package bridge wires the OSC datagram listener to the secure WebSocket
// relay and runs both until the context ends.
package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"oscbridge/internal/config"
	"oscbridge/internal/identity"
	"oscbridge/internal/metrics"
	udp "oscbridge/internal/microservices/udp-server"
	"oscbridge/internal/microservices/websocket"
)

// Bridge owns every long-lived component of one running process.
type Bridge struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	provisioner *identity.Provisioner

	Identity    *identity.Identity
	Hub         *websocket.Hub
	Broadcaster *websocket.Broadcaster
	OSC         *udp.Server
	WSS         *websocket.Server
}

// Option customizes a Bridge before it starts.
type Option func(*Bridge)

// WithInterfaces pins the interface source used for address detection.
func WithInterfaces(lister identity.InterfaceLister) Option {
	return func(b *Bridge) {
		b.provisioner.WithInterfaces(lister)
	}
}

// WithMetrics replaces the metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New builds a bridge from configuration. Nothing is bound until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics.New(),
		provisioner: identity.NewProvisioner(cfg.CertHorizon, logger),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start provisions the TLS identity and binds both listeners. Any failure
// here is fatal to the process: no address, or a port already in use.
func (b *Bridge) Start() error {
	id, err := b.provisioner.Provision()
	if err != nil {
		return fmt.Errorf("failed to provision TLS identity: %w", err)
	}
	b.Identity = id

	if b.cfg.CertExportPath != "" {
		if err := id.ExportCertificate(b.cfg.CertExportPath); err != nil {
			return err
		}
		b.logger.Info("certificate_exported", "path", b.cfg.CertExportPath)
	}

	b.Hub = websocket.NewHub(b.logger, b.metrics)
	b.Broadcaster = websocket.NewBroadcaster(b.Hub, b.cfg.Debug, b.logger, b.metrics)

	wss, err := websocket.NewServer(b.cfg.WSSAddr(), id, b.Hub, websocket.Options{
		QueueSize:       b.cfg.ClientQueueSize,
		HelpFile:        b.cfg.HelpFile,
		MetricsEnabled:  b.cfg.MetricsEnabled,
		ShutdownTimeout: b.cfg.ShutdownTimeout,
	}, b.logger, b.metrics)
	if err != nil {
		return err
	}
	if err := wss.Listen(); err != nil {
		return err
	}
	b.WSS = wss

	osc, err := udp.NewServer(b.cfg.OSCAddr(), b.Broadcaster, b.logger, b.metrics)
	if err != nil {
		wss.Close()
		return err
	}
	b.OSC = osc
	return nil
}

// Run serves both listeners until ctx is cancelled or one of them fails.
// Start must have succeeded first.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.OSC.Serve(ctx)
	})
	g.Go(func() error {
		return b.WSS.Serve(ctx)
	})

	b.logger.Info("bridge_ready",
		"osc_addr", b.OSC.Addr().String(),
		"wss_url", b.WSS.URL(),
		"debug", b.cfg.Debug,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	b.logger.Info("bridge_stopped")
	return nil
}

// Metrics returns the bridge's metrics set.
func (b *Bridge) Metrics() *metrics.Metrics {
	return b.metrics
}
