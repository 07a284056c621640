package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcomes.
const (
	OutcomePublished    = "published"
	OutcomeDuplicate    = "duplicate"
	OutcomeRetry        = "retry"
	OutcomeDeadLettered = "dead_lettered"
)

// RelayMetrics follows outbox rows through the publisher.
type RelayMetrics struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	claimed  prometheus.Histogram
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "rows_total",
			Help:      "Outbox rows handled by the relay, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_seconds",
			Help:      "Broker round trip per message.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"topic"}),
		claimed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_rows",
			Help:      "Rows claimed per non-empty batch.",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		}),
	}
	reg.MustRegister(m.outcomes, m.latency, m.claimed)
	return m
}

func (m *RelayMetrics) Outcome(topic, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(topic), outcome).Inc()
}

func (m *RelayMetrics) ObservePublish(topic string, d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.WithLabelValues(normalizeLabel(topic)).Observe(d.Seconds())
}

func (m *RelayMetrics) ObserveBatch(rows int) {
	if m == nil || m.claimed == nil || rows == 0 {
		return
	}
	m.claimed.Observe(float64(rows))
}
