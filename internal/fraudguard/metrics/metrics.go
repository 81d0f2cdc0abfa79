package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the admission pipeline.
type Metrics struct {
	// Submissions by outcome ("accepted"/"rejected") and reason ("" when accepted)
	Submissions *prometheus.CounterVec

	// Full evaluate-and-append latency
	SubmitLatency prometheus.Histogram

	// Events dropped by the dispatcher because the inbox was full
	EventsDropped prometheus.Counter
}

// New creates and registers the admission metrics.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagevote_vote_submissions_total",
			Help: "Vote submissions by outcome and rejection reason",
		}, []string{"outcome", "reason"}),

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagevote_vote_submit_duration_seconds",
			Help:    "Duration of vote admission including the ledger append",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagevote_events_dropped_total",
			Help: "Events dropped because the dispatcher inbox was full",
		}),
	}
}

// IncAccepted records an accepted submission.
func (m *Metrics) IncAccepted() {
	if m != nil {
		m.Submissions.WithLabelValues("accepted", "").Inc()
	}
}

// IncRejected records a rejected submission with its reason.
func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.Submissions.WithLabelValues("rejected", reason).Inc()
	}
}

// ObserveSubmitLatency records a full submission duration.
func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

// IncEventsDropped records a dropped dispatcher event.
func (m *Metrics) IncEventsDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}
