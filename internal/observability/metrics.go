package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "resource_aggregator"

// Metrics holds the Prometheus counters and histograms for the aggregation service.
type Metrics struct {
	Aggregations    *prometheus.CounterVec // labels: outcome={cached,fresh,invalid,error}
	ResourcesServed prometheus.Histogram

	// Adapter fan-out metrics.
	AdapterRequests *prometheus.CounterVec   // labels: source, outcome={success,error}
	AdapterDuration *prometheus.HistogramVec // labels: source

	GeocodeCache *prometheus.CounterVec // labels: result={hit,miss}

	PersistenceErrors *prometheus.CounterVec // labels: reason={connection,constraint,timeout,other}
	PublishErrors     prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Aggregations,
		m.ResourcesServed,
		m.AdapterRequests,
		m.AdapterDuration,
		m.GeocodeCache,
		m.PersistenceErrors,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Aggregation requests by outcome.",
		}, []string{"outcome"}),
		ResourcesServed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resources_returned",
			Help:      "Number of resources returned per aggregation.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
		AdapterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_requests_total",
			Help:      "Upstream adapter calls by source and outcome.",
		}, []string{"source", "outcome"}),
		AdapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_duration_seconds",
			Help:      "Upstream adapter call duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"source"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Store write failures by reason.",
		}, []string{"reason"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed resource publications to Kafka.",
		}),
	}
}
