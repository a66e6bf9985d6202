package loader

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//cacheHits prometheus metric.
	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of decoded code blocks taken from the cache",
			Name:      "loader_cache_hits_total",
			Namespace: "dsovm",
		},
	)
	//cacheMisses prometheus metric.
	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of code blocks decoded by the loader",
			Name:      "loader_cache_misses_total",
			Namespace: "dsovm",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheHits,
		cacheMisses,
	)
}
