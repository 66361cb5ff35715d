// Package metrics census pipeline prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected" // business rule refused the operation
	OutcomeError    = "error"
)

// Metrics collectors registered on a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	auditEntries  prometheus.Counter
	rollupCache   *prometheus.CounterVec
	rollupLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census",
			Name:      "operations_total",
			Help:      "Census operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census",
			Name:      "shift_transitions_total",
			Help:      "Committed shift record status transitions.",
		}, []string{"from", "to"}),
		auditEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "census",
			Name:      "audit_entries_total",
			Help:      "Audit entries appended to approved shift records.",
		}),
		rollupCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "census",
			Name:      "rollup_cache_total",
			Help:      "Daily rollup cache lookups by result.",
		}, []string{"result"}),
		rollupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "census",
			Name:      "rollup_build_seconds",
			Help:      "Time to build an uncached daily rollup.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.operations, m.transitions, m.auditEntries, m.rollupCache, m.rollupLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Operation counts one service call.
func (m *Metrics) Operation(name, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

// Transition counts one committed status move.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) AuditEntry() {
	if m == nil {
		return
	}
	m.auditEntries.Inc()
}

// RollupCache result is "hit", "miss", "stale" or "error".
func (m *Metrics) RollupCache(result string) {
	if m == nil {
		return
	}
	m.rollupCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRollup(seconds float64) {
	if m == nil {
		return
	}
	m.rollupLatency.Observe(seconds)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
