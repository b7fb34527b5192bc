package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	AttemptsSubmitted *prometheus.CounterVec
	ScoringDuration   prometheus.Histogram
	ViolationsQueued  *prometheus.CounterVec
	ViolationsStored  prometheus.Counter
	ViolationsDropped prometheus.Counter
	MigrationRuns     *prometheus.CounterVec
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AttemptsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examsecure",
			Name:      "attempts_submitted_total",
			Help:      "Attempt submissions by outcome.",
		}, []string{"outcome"}),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "examsecure",
			Name:      "scoring_duration_seconds",
			Help:      "Time spent scoring and persisting one attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
		ViolationsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examsecure",
			Name:      "violations_queued_total",
			Help:      "Client-reported integrity events accepted, by kind.",
		}, []string{"kind"}),
		ViolationsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "examsecure",
			Name:      "violations_stored_total",
			Help:      "Integrity events persisted by the violation worker.",
		}),
		ViolationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "examsecure",
			Name:      "violations_dropped_total",
			Help:      "Integrity events discarded as malformed.",
		}),
		MigrationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examsecure",
			Name:      "schema_bootstrap_total",
			Help:      "Schema bootstrap runs by result (applied, skipped, failed).",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.AttemptsSubmitted,
		m.ScoringDuration,
		m.ViolationsQueued,
		m.ViolationsStored,
		m.ViolationsDropped,
		m.MigrationRuns,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome labels for AttemptsSubmitted.
const (
	OutcomeScored    = "scored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)
