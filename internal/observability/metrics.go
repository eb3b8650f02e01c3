package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lightning_overlay"

// Metrics holds the Prometheus counters, histograms, and gauges for overlay generation.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec // labels: product, outcome
	RunsInFlight prometheus.Gauge
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Fetch stage metrics.
	ProductsProcessed prometheus.Counter
	ProductFailures   *prometheus.CounterVec // labels: stage={download,extract,decode}
	FlashesExtracted  prometheus.Counter

	StageDuration *prometheus.HistogramVec // labels: stage={fetch,filter,render}

	// Post-run sinks (journal, kafka, object store).
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed overlay runs by product and outcome.",
		}, []string{"product", "outcome"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Overlay runs currently executing.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Output cache lookups by result.",
		}, []string{"result"}),
		ProductsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_processed_total",
			Help:      "Catalog products downloaded and decoded, including failures.",
		}),
		ProductFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_failures_total",
			Help:      "Catalog products skipped after a failure, by stage.",
		}, []string{"stage"}),
		FlashesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashes_extracted_total",
			Help:      "Flash observations decoded from catalog products.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Post-run sink writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunsInFlight,
		m.CacheLookups,
		m.ProductsProcessed,
		m.ProductFailures,
		m.FlashesExtracted,
		m.StageDuration,
		m.SinkWrites,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
