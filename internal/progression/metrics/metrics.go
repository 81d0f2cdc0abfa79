// Package metrics exposes Prometheus collectors for finalize outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	finalizes       *prometheus.CounterVec
	advancements    prometheus.Counter
	finalizeLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		finalizes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagevote_finalizes_total",
			Help: "Finalize calls by outcome.",
		}, []string{"outcome"}),
		advancements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagevote_advancements_total",
			Help: "Participants advanced into a destination competition.",
		}),
		finalizeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagevote_finalize_duration_seconds",
			Help:    "Latency of finalize including the in-flight drain.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncFinalize(outcome string) {
	if m == nil {
		return
	}
	m.finalizes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddAdvancements(n int) {
	if m == nil {
		return
	}
	m.advancements.Add(float64(n))
}

func (m *Metrics) ObserveFinalizeLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.finalizeLatency.Observe(d.Seconds())
}
