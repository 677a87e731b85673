// Package metrics provides Prometheus instrumentation for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oscbridge"

// Metrics holds all Prometheus metrics for the bridge. Each instance owns its
// registry so independent bridges (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Datagram metrics
	DatagramsReceived prometheus.Counter
	DatagramsDecoded  prometheus.Counter
	DecodeErrors      *prometheus.CounterVec // label: kind

	// Relay metrics
	MessagesRelayed prometheus.Counter
	QueueDrops      prometheus.Counter
	SendErrors      prometheus.Counter

	// Session metrics
	ActiveClients     prometheus.Gauge
	ClientsAccepted   prometheus.Counter
	HandshakeFailures *prometheus.CounterVec // label: stage
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total number of UDP datagrams received",
		}),
		DatagramsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_decoded_total",
			Help:      "Total number of datagrams decoded into OSC messages",
		}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of dropped datagrams by failure kind",
		}, []string{"kind"}),

		MessagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Total number of messages handed to the relay",
		}),
		QueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_queue_drops_total",
			Help:      "Total number of queued messages dropped to make room for newer ones",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_send_errors_total",
			Help:      "Total number of client write failures",
		}),

		ActiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_clients",
			Help:      "Current number of open WebSocket clients",
		}),
		ClientsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_accepted_total",
			Help:      "Total number of WebSocket clients that reached the open state",
		}),
		HandshakeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Total number of failed connection attempts by stage",
		}, []string{"stage"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
