package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// report build pipeline.
type Metrics struct {
	RetrievalRequests *prometheus.CounterVec // labels: service={acs,flows,tigerweb}, outcome={success,error}
	RowsRetrieved     *prometheus.CounterVec // labels: service
	CacheLookups      *prometheus.CounterVec // labels: service, result={hit,miss}

	TransformErrors  prometheus.Counter
	ArtifactsWritten *prometheus.CounterVec   // labels: kind={png,html,csv}
	ReportDuration   *prometheus.HistogramVec // labels: report={income,pyramid,flows}
	BuildRunning     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RetrievalRequests,
		m.RowsRetrieved,
		m.CacheLookups,
		m.TransformErrors,
		m.ArtifactsWritten,
		m.ReportDuration,
		m.BuildRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RetrievalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census_flows",
			Name:      "retrieval_requests_total",
			Help:      "Remote data service requests by service and outcome.",
		}, []string{"service", "outcome"}),
		RowsRetrieved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census_flows",
			Name:      "rows_retrieved_total",
			Help:      "Table rows returned by remote data services.",
		}, []string{"service"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census_flows",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by service and result.",
		}, []string{"service", "result"}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "census_flows",
			Name:      "transform_errors_total",
			Help:      "Total transformation failures (all fatal to the run).",
		}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census_flows",
			Name:      "artifacts_written_total",
			Help:      "Rendered artifacts written, by kind.",
		}, []string{"kind"}),
		ReportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "census_flows",
			Name:      "report_build_duration_seconds",
			Help:      "Duration of one complete retrieve-transform-render cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"report"}),
		BuildRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "census_flows",
			Name:      "build_running",
			Help:      "1 while a report build is active, 0 otherwise.",
		}),
	}
}
