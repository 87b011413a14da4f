// Package metrics owns the Prometheus registry and the collectors the
// stream endpoints and the startup caller report into.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "itemstream"

// Outcome labels for StreamDuration.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Metrics are the collectors shared by the service's components.
type Metrics struct {
	ItemsEmitted   *prometheus.CounterVec
	StreamsActive  *prometheus.GaugeVec
	StreamDuration *prometheus.HistogramVec
	OutboundCalls  *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		ItemsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_emitted_total",
			Help:      "Items written to clients, per endpoint.",
		}, []string{"endpoint"}),
		StreamsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Responses currently being produced, per endpoint.",
		}, []string{"endpoint"}),
		StreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from request to the end of the response body.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"endpoint", "outcome"}),
		OutboundCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_calls_total",
			Help:      "Requests made to the echo service, by result.",
		}, []string{"result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups, by hit or miss.",
		}, []string{"result"}),
	}
}

// Registry pairs a private Prometheus registry with the service metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry registers the service metrics plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            newMetrics(),
	}
	r.prometheusRegistry.MustRegister(
		r.Metrics.ItemsEmitted,
		r.Metrics.StreamsActive,
		r.Metrics.StreamDuration,
		r.Metrics.OutboundCalls,
		r.Metrics.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
