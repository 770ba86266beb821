package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ej_indicator"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Analysis outcomes.
	Analyses         *prometheus.CounterVec // labels: mode={LIVE,FALLBACK}, reason={"",not_found,transport,malformed,bypassed,unknown}
	AnalysisDuration prometheus.Histogram
	StaleResults     prometheus.Counter

	// Upstream lookups.
	UpstreamRequests *prometheus.CounterVec   // labels: upstream={nominatim,openmeteo,ejscreen}, outcome={success,not_found,transport,malformed}
	UpstreamDuration *prometheus.HistogramVec // labels: upstream

	// Batch pipeline.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Text-generation relay.
	RelayRequests *prometheus.CounterVec // labels: provider, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by source mode and fallback reason.",
		}, []string{"mode", "reason"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of one analysis including upstream calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Results discarded because a newer analysis already completed.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Geocoder and indicator provider requests by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total query messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total analysis results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Query messages skipped because they could not be parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the batch pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-analyze-load cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RelayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Text-generation relay requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Analyses,
		m.AnalysisDuration,
		m.StaleResults,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RelayRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests. ejctl uses it
// too since a one-shot command never serves /metrics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
