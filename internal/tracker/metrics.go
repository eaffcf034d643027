package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Metrics is a prometheus.Collector for engine activity. A nil *Metrics
// records nothing.
type Metrics struct {
	statements      *prometheus.CounterVec
	statementErrors *prometheus.CounterVec
	persists        *prometheus.CounterVec
	entities        prometheus.Counter
	persistDuration prometheus.Histogram
}

// NewMetrics returns a collector whose metrics live under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Statements sent to the store.",
			}, []string{"op", "table"},
		),
		statementErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statement_errors_total",
				Help:      "Statements the store rejected.",
			}, []string{"op", "table"},
		),
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persists_total",
				Help:      "Persist calls by outcome.",
			}, []string{"result"},
		),
		entities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persisted_entities_total",
				Help:      "Entities written by successful persists.",
			},
		),
		persistDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "persist_duration_seconds",
				Help:      "Time spent in Persist.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.statements.Describe(ch)
	m.statementErrors.Describe(ch)
	m.persists.Describe(ch)
	m.entities.Describe(ch)
	m.persistDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.statements.Collect(ch)
	m.statementErrors.Collect(ch)
	m.persists.Collect(ch)
	m.entities.Collect(ch)
	m.persistDuration.Collect(ch)
}

func (m *Metrics) observeStatement(stmt types.Statement, err error) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(string(stmt.Op), stmt.Table).Inc()
	if err != nil {
		m.statementErrors.WithLabelValues(string(stmt.Op), stmt.Table).Inc()
	}
}

func (m *Metrics) observePersist(n int, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case n == 0:
		result = "noop"
	}
	m.persists.WithLabelValues(result).Inc()
	m.entities.Add(float64(n))
	m.persistDuration.Observe(d.Seconds())
}
