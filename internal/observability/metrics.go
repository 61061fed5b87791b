// Package observability exposes Prometheus metrics for the clients
// and the serving surface.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "censusbuddy_cache_results_total",
			Help: "Disk cache results by component and outcome.",
		},
		[]string{"component", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "censusbuddy_fetch_duration_seconds",
			Help:    "Duration of upstream fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
		},
		[]string{"upstream"},
	)

	unpackDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "censusbuddy_unpack_duration_seconds",
			Help:    "Duration of archive conversion runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "censusbuddy_build_info",
			Help: "Build information for the binary (value is always 1).",
		},
		[]string{"version"},
	)
)

func IncCacheHit(component string)  { cacheResults.WithLabelValues(component, "hit").Inc() }
func IncCacheMiss(component string) { cacheResults.WithLabelValues(component, "miss").Inc() }

func ObserveFetch(upstream string, seconds float64) {
	fetchDurationSeconds.WithLabelValues(upstream).Observe(seconds)
}

func ObserveUnpack(seconds float64) {
	unpackDurationSeconds.Observe(seconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
