package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors
type Metrics struct {
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	FallbackRegroupings prometheus.Counter
	StaleDiscards       prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	TemplateRenders     prometheus.Counter
}

// New creates and registers the engine collectors
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_evaluations_total",
			Help: "Total trigger evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_evaluation_duration_seconds",
			Help:    "Wall time of full trigger evaluations",
			Buckets: prometheus.DefBuckets,
		}),
		FallbackRegroupings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_fallback_regroupings_total",
			Help: "Aggregate queries retried with a coarser grouping",
		}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_stale_results_discarded_total",
			Help: "Evaluation results discarded because a newer evaluation superseded them",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_distinct_cache_hits_total",
			Help: "Distinct-value lookups served from cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_distinct_cache_misses_total",
			Help: "Distinct-value lookups that reached the query service",
		}),
		TemplateRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_template_renders_total",
			Help: "Notification template render operations",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.EvaluationsTotal,
			m.EvaluationDuration,
			m.FallbackRegroupings,
			m.StaleDiscards,
			m.CacheHits,
			m.CacheMisses,
			m.TemplateRenders,
		)
	}

	return m
}
