package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "notify_queue_consumer"

// Metrics records cycle outcomes. A nil *Metrics records nothing.
type Metrics struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	updateRetries   prometheus.Counter
	reconciliations *prometheus.CounterVec
}

// NewMetrics registers the consumer collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cycles_total",
				Help:      "Total number of poll cycles by outcome.",
			},
			[]string{"outcome"}, // no_message, success, duplicate, failed
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of poll cycles that received a message.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		updateRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "status_update_retries_total",
				Help:      "Total number of second status update attempts.",
			},
		),
		reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconciliation_events_total",
				Help:      "Total number of reconciliation events by publish result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) observeCycle(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeNoMessage {
		m.cycleDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.updateRetries.Inc()
}

func (m *Metrics) observeReconciliation(err error) {
	if m == nil {
		return
	}
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.reconciliations.WithLabelValues(result).Inc()
}
