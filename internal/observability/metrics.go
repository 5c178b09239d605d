package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scoring pipeline.
type Metrics struct {
	ScoringRuns prometheus.Counter
	RunDuration prometheus.Histogram
	SinkErrors  prometheus.Counter

	ObservationsLoaded *prometheus.CounterVec // labels: metric={precip_mm,temp_c,ndvi}, source={store,provider}
	ProviderErrors     *prometheus.CounterVec // labels: metric
	YearsScored        *prometheus.GaugeVec   // labels: model={climate,bloom}
	YearsDropped       *prometheus.CounterVec // labels: model
	ModelFailures      *prometheus.CounterVec // labels: model
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScoringRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "scoring_runs_total",
			Help:      "Total scoring runs started.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bloomwatch",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-aggregate-score-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "sink_errors_total",
			Help:      "Total failures writing score results to a sink.",
		}),
		ObservationsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "observations_loaded_total",
			Help:      "Observations loaded per metric, by source (store cache or provider).",
		}, []string{"metric", "source"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "provider_errors_total",
			Help:      "Failed provider fetches per metric.",
		}, []string{"metric"}),
		YearsScored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bloomwatch",
			Name:      "years_scored",
			Help:      "Water years scored in the latest run, per model.",
		}, []string{"model"}),
		YearsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "years_dropped_total",
			Help:      "Years excluded from scoring for missing seasonal data, per model.",
		}, []string{"model"}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomwatch",
			Name:      "model_failures_total",
			Help:      "Scoring failures (degenerate samples, empty joins), per model.",
		}, []string{"model"}),
	}

	prometheus.MustRegister(
		m.ScoringRuns,
		m.RunDuration,
		m.SinkErrors,
		m.ObservationsLoaded,
		m.ProviderErrors,
		m.YearsScored,
		m.YearsDropped,
		m.ModelFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScoringRuns:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "scoring_runs_total"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "bloomwatch", Name: "run_duration_seconds"}),
		SinkErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "sink_errors_total"}),
		ObservationsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "observations_loaded_total"}, []string{"metric", "source"}),
		ProviderErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "provider_errors_total"}, []string{"metric"}),
		YearsScored:        prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "bloomwatch", Name: "years_scored"}, []string{"model"}),
		YearsDropped:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "years_dropped_total"}, []string{"model"}),
		ModelFailures:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "bloomwatch", Name: "model_failures_total"}, []string{"model"}),
	}
}
