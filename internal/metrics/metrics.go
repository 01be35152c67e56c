package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exposed on /metrics.
type Metrics struct {
	RunsCreated       *prometheus.CounterVec
	RunsCompleted     *prometheus.CounterVec
	DaysSimulated     *prometheus.CounterVec
	SimulateDuration  prometheus.Histogram
	SimulateErrors    prometheus.Counter
	CausalRequests    prometheus.Counter
	CausalCacheHits   prometheus.Counter
	CausalCacheMisses prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
}

// New creates and registers all metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsim_runs_created_total",
				Help: "Number of simulation runs created, by scenario",
			},
			[]string{"scenario"},
		),
		RunsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsim_runs_completed_total",
				Help: "Number of simulation runs that reached their final day, by scenario",
			},
			[]string{"scenario"},
		),
		DaysSimulated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsim_days_simulated_total",
				Help: "Number of simulated days persisted, by scenario",
			},
			[]string{"scenario"},
		),
		SimulateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adsim_simulate_day_duration_seconds",
			Help:    "Wall time of a single simulate-day step including persistence",
			Buckets: prometheus.DefBuckets,
		}),
		SimulateErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsim_simulate_day_errors_total",
			Help: "Number of simulate-day steps that failed",
		}),
		CausalRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsim_causal_requests_total",
			Help: "Number of causal analysis requests served",
		}),
		CausalCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsim_causal_cache_hits_total",
			Help: "Number of causal analyses served from the LRU cache",
		}),
		CausalCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsim_causal_cache_misses_total",
			Help: "Number of causal analyses computed on demand",
		}),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adsim_http_requests_total",
				Help: "Number of HTTP requests served, by method, route and status",
			},
			[]string{"method", "path", "status"},
		),
	}
}
