package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the indicator build.
type Metrics struct {
	// Upstream fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source={worldbank,owid,geo}, outcome={success,error}
	FetchRetries  *prometheus.CounterVec   // labels: source
	FetchDuration *prometheus.HistogramVec // labels: source
	RowsDiscarded *prometheus.CounterVec   // labels: source

	// Build metrics.
	MetricCountries    *prometheus.GaugeVec // labels: metric
	BuildDuration      prometheus.Histogram
	BuildsTotal        *prometheus.CounterVec // labels: outcome={success,error}
	LastSuccessfulRun  prometheus.Gauge
	ArtifactsPublished *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all build metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.RowsDiscarded,
		m.MetricCountries,
		m.BuildDuration,
		m.BuildsTotal,
		m.LastSuccessfulRun,
		m.ArtifactsPublished,
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
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indicator_etl",
			Name:      "fetch_requests_total",
			Help:      "Upstream HTTP requests by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indicator_etl",
			Name:      "fetch_retries_total",
			Help:      "Upstream requests retried after a failed attempt.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indicator_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		RowsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indicator_etl",
			Name:      "rows_discarded_total",
			Help:      "Rows excluded from the latest-value reduction by data-quality checks.",
		}, []string{"source"}),
		MetricCountries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "indicator_etl",
			Name:      "metric_countries",
			Help:      "Countries with a value in the most recent artifact for each metric.",
		}, []string{"metric"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indicator_etl",
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete build.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indicator_etl",
			Name:      "builds_total",
			Help:      "Completed builds by outcome.",
		}, []string{"outcome"}),
		LastSuccessfulRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "indicator_etl",
			Name:      "last_successful_build_timestamp_seconds",
			Help:      "Unix time of the last build that wrote every artifact and the manifest.",
		}),
		ArtifactsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indicator_etl",
			Name:      "artifacts_published_total",
			Help:      "Artifacts and manifests written, by sink.",
		}, []string{"sink"}),
	}
}
