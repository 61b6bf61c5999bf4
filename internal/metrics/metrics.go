// Package metrics exposes pipeline counters to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Publishes          *prometheus.CounterVec // labels: destination, outcome
	Cycles             *prometheus.CounterVec // labels: kind, outcome
	SourceFailures     *prometheus.CounterVec // labels: part
	NarrativeFailures  *prometheus.CounterVec // labels: kind
	LedgerSuppressions *prometheus.CounterVec // labels: pool, reason
	LedgerEvictions    *prometheus.CounterVec // labels: pool
	TaskRuns           *prometheus.CounterVec // labels: task, outcome
	AskQuestions       *prometheus.CounterVec // labels: outcome
	LedgerSize         *prometheus.GaugeVec   // labels: pool
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_publishes_total",
			Help: "Publish attempts by destination and outcome",
		}, []string{"destination", "outcome"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_cycles_total",
			Help: "Pipeline cycles by kind and outcome",
		}, []string{"kind", "outcome"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_source_failures_total",
			Help: "Snapshot parts that could not be fetched",
		}, []string{"part"}),
		NarrativeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_narrative_failures_total",
			Help: "Completion calls that failed or returned nothing",
		}, []string{"kind"}),
		LedgerSuppressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_ledger_suppressions_total",
			Help: "Items skipped as duplicates or throttled",
		}, []string{"pool", "reason"}),
		LedgerEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_ledger_evictions_total",
			Help: "Ids dropped from a ledger pool",
		}, []string{"pool"}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_task_runs_total",
			Help: "Scheduled task runs by outcome",
		}, []string{"task", "outcome"}),
		AskQuestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_ask_questions_total",
			Help: "Q&A requests by outcome",
		}, []string{"outcome"}),
		LedgerSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "herald_ledger_pool_size",
			Help: "Ids currently remembered per ledger pool",
		}, []string{"pool"}),
	}
	reg.MustRegister(
		m.Publishes,
		m.Cycles,
		m.SourceFailures,
		m.NarrativeFailures,
		m.LedgerSuppressions,
		m.LedgerEvictions,
		m.TaskRuns,
		m.AskQuestions,
		m.LedgerSize,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (m *Metrics) Publish(destination string, ok bool) {
	if m == nil {
		return
	}
	m.Publishes.WithLabelValues(destination, outcome(ok)).Inc()
}

func (m *Metrics) Cycle(kind string, ok bool) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(kind, outcome(ok)).Inc()
}

func (m *Metrics) SourceFailed(part string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(part).Inc()
}

func (m *Metrics) NarrativeFailed(kind string) {
	if m == nil {
		return
	}
	m.NarrativeFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Suppressed(pool, reason string) {
	if m == nil {
		return
	}
	m.LedgerSuppressions.WithLabelValues(pool, reason).Inc()
}

func (m *Metrics) Evicted(pool string, n int) {
	if m == nil {
		return
	}
	m.LedgerEvictions.WithLabelValues(pool).Add(float64(n))
}

func (m *Metrics) TaskRun(task string, ok bool) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(task, outcome(ok)).Inc()
}

func (m *Metrics) Ask(result string) {
	if m == nil {
		return
	}
	m.AskQuestions.WithLabelValues(result).Inc()
}

func (m *Metrics) SetLedgerSize(pool string, n int) {
	if m == nil {
		return
	}
	m.LedgerSize.WithLabelValues(pool).Set(float64(n))
}
