package relayd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so tests can run servers side by side.
type metrics struct {
	registry *prometheus.Registry

	messagesStored  prometheus.Counter
	messagesDropped prometheus.Counter
	wsClients       prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		messagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayd_messages_stored_total",
			Help: "Message rows accepted and stored.",
		}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayd_messages_dropped_total",
			Help: "Message posts rejected by the rate limiter.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayd_ws_clients",
			Help: "Currently connected websocket subscribers.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relayd_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.messagesStored,
		m.messagesDropped,
		m.wsClients,
		m.requestDuration,
	)
	return m
}
