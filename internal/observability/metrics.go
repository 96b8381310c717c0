package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for loading, caching and the explore pipeline.
type Metrics struct {
	DatasetLoads        *prometheus.CounterVec // labels: outcome={success,error}
	DatasetLoadDuration prometheus.Histogram
	DatasetObservations prometheus.Gauge
	CacheLookups        *prometheus.CounterVec // labels: result={hit,miss}

	PipelineRuns     prometheus.Counter
	PipelineDuration prometheus.Histogram
	Forecasts        *prometheus.CounterVec // labels: state={forecasted,warned,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered with reg. A nil reg leaves
// them unregistered, which lets tests build as many instances as they need.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_explorer",
			Name:      "dataset_loads_total",
			Help:      "Upstream dataset fetches by outcome.",
		}, []string{"outcome"}),
		DatasetLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covid_explorer",
			Name:      "dataset_load_duration_seconds",
			Help:      "Duration of a full upstream fetch and parse.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		DatasetObservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_explorer",
			Name:      "dataset_observations",
			Help:      "Country-day observations in the cached snapshot.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_explorer",
			Name:      "cache_lookups_total",
			Help:      "Dataset cache lookups by result.",
		}, []string{"result"}),
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covid_explorer",
			Name:      "pipeline_runs_total",
			Help:      "Filter pipeline executions.",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covid_explorer",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of filter, summary, chart, export and forecast for one request.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_explorer",
			Name:      "forecasts_total",
			Help:      "Forecast requests by resulting state.",
		}, []string{"state"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DatasetLoads,
			m.DatasetLoadDuration,
			m.DatasetObservations,
			m.CacheLookups,
			m.PipelineRuns,
			m.PipelineDuration,
			m.Forecasts,
		)
	}

	return m
}
