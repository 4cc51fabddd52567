package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "kafkanet"

// request outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the broker's collectors, registered on a registry owned by the Metrics
// so that several brokers in one process don't collide.
type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec // labels: type, outcome
	MessagesProduced  *prometheus.CounterVec // labels: topic
	MessagesConsumed  *prometheus.CounterVec // labels: topic
	AppendLatency     prometheus.Histogram
	OpenConnections   prometheus.Gauge
	ConnectionsClosed prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests handled, by request type and outcome.",
		}, []string{"type", "outcome"}),
		MessagesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "messages_produced_total",
			Help:      "Messages appended, by topic.",
		}, []string{"topic"}),
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "messages_consumed_total",
			Help:      "Messages returned to consumers, by topic.",
		}, []string{"topic"}),
		AppendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "append_duration_seconds",
			Help:      "Time to append and fsync one record.",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "open_connections",
			Help:      "Client connections currently open.",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "connections_closed_total",
			Help:      "Client connections closed.",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.MessagesProduced,
		m.MessagesConsumed,
		m.AppendLatency,
		m.OpenConnections,
		m.ConnectionsClosed,
	)
	return m
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors
func (m *Metrics) RegisterRuntimeCollectors() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
	)
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest counts one handled request
func (m *Metrics) RecordRequest(requestType string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.Requests.WithLabelValues(requestType, outcome).Inc()
}

// RecordProduce counts an appended message and how long the append took
func (m *Metrics) RecordProduce(topic string, appendDuration time.Duration) {
	m.MessagesProduced.WithLabelValues(topic).Inc()
	m.AppendLatency.Observe(appendDuration.Seconds())
}

// RecordConsume counts messages returned by a consume request
func (m *Metrics) RecordConsume(topic string, count int) {
	if count > 0 {
		m.MessagesConsumed.WithLabelValues(topic).Add(float64(count))
	}
}

// ConnectionOpened tracks a newly accepted connection
func (m *Metrics) ConnectionOpened() {
	m.OpenConnections.Inc()
}

// ConnectionClosed tracks a connection going away
func (m *Metrics) ConnectionClosed() {
	m.OpenConnections.Dec()
	m.ConnectionsClosed.Inc()
}
