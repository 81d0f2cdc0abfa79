// Package metrics exposes Prometheus collectors for standings reads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	boardBuilds  prometheus.Counter
	buildLatency prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		boardBuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagevote_leaderboard_builds_total",
			Help: "Full board projections computed from the vote ledger.",
		}),
		buildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagevote_leaderboard_build_duration_seconds",
			Help:    "Latency of computing a board projection.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagevote_leaderboard_cache_hits_total",
			Help: "Board reads served from cache.",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagevote_leaderboard_cache_misses_total",
			Help: "Board reads that required a fresh projection.",
		}),
	}
}

func (m *Metrics) IncBoardBuilds() {
	if m == nil {
		return
	}
	m.boardBuilds.Inc()
}

func (m *Metrics) ObserveBuildLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.buildLatency.Observe(d.Seconds())
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
