package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records outcomes of outbox relay sweeps.
type RelayMetrics struct {
	sweepDuration prometheus.Histogram
	published     prometheus.Counter
	failed        prometheus.Counter
	deadLettered  prometheus.Counter
}

// NewRelayMetrics registers the relay metrics on the provided registerer.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_sweep_duration_seconds",
		Help:    "Duration of outbox relay sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events confirmed by the broker and marked processed.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Transient publish failures left for the next sweep.",
	})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered_total",
		Help: "Outbox events parked in the DLQ.",
	})
	reg.MustRegister(sweepDuration, published, failed, deadLettered)
	return &RelayMetrics{
		sweepDuration: sweepDuration,
		published:     published,
		failed:        failed,
		deadLettered:  deadLettered,
	}
}

// ObserveSweep records the duration of one relay sweep.
func (m *RelayMetrics) ObserveSweep(duration time.Duration) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// IncPublished counts one confirmed publish.
func (m *RelayMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncFailed counts one transient publish failure.
func (m *RelayMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// IncDeadLettered counts one event parked in the DLQ.
func (m *RelayMetrics) IncDeadLettered() {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.Inc()
}
