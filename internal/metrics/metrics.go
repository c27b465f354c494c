package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the interview pipeline. All
// methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	Turns               *prometheus.CounterVec
	GenerationLatency   *prometheus.HistogramVec
	Retrievals          *prometheus.CounterVec
	Extractions         *prometheus.CounterVec
	LifecycleOps        *prometheus.CounterVec
	KnowledgeCards      *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// New creates and registers the collectors once per process.
func New() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			Turns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_conversation_turns_total",
					Help: "Conversation turns by persona and outcome (ok, fallback)",
				},
				[]string{"persona", "outcome"},
			),
			GenerationLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "nova_generation_duration_seconds",
					Help:    "Latency of generation provider calls",
					Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to 32s
				},
				[]string{"purpose", "success"},
			),
			Retrievals: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_retrievals_total",
					Help: "Knowledge retrievals by outcome (hit, miss, error, timeout)",
				},
				[]string{"outcome"},
			),
			Extractions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_extractions_total",
					Help: "Specification extractions by outcome",
				},
				[]string{"outcome"},
			),
			LifecycleOps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_lifecycle_operations_total",
					Help: "Specification lifecycle operations by op and result (applied, noop, rejected, failed)",
				},
				[]string{"op", "result"},
			),
			KnowledgeCards: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_knowledge_cards_total",
					Help: "Solution cards committed, by whether an embedding was stored",
				},
				[]string{"embedded"},
			),
			PersistenceFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nova_persistence_failures_total",
					Help: "Store write failures by entity",
				},
				[]string{"entity"},
			),
			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "nova_active_sessions",
					Help: "Interview sessions currently held in memory",
				},
			),
		}
	})
	return sharedMetrics
}

func (m *Metrics) RecordTurn(persona, outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(persona, outcome).Inc()
}

func (m *Metrics) ObserveGeneration(purpose string, started time.Time, err error) {
	if m == nil {
		return
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	m.GenerationLatency.WithLabelValues(purpose, success).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordRetrieval(outcome string) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordExtraction(outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLifecycle(op, result string) {
	if m == nil {
		return
	}
	m.LifecycleOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) RecordCard(embedded bool) {
	if m == nil {
		return
	}
	label := "false"
	if embedded {
		label = "true"
	}
	m.KnowledgeCards.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordPersistenceFailure(entity string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(entity).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
