package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ListenerMetrics records outcomes of balance response handling.
type ListenerMetrics struct {
	updated prometheus.Counter
	dropped prometheus.Counter
}

// NewListenerMetrics registers the listener metrics on the provided registerer.
func NewListenerMetrics(reg prometheus.Registerer) *ListenerMetrics {
	if reg == nil {
		return &ListenerMetrics{}
	}
	updated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "balance_cache_updates_total",
		Help: "Balance responses written into the cache.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "balance_responses_dropped_total",
		Help: "Malformed or invalid balance responses discarded.",
	})
	reg.MustRegister(updated, dropped)
	return &ListenerMetrics{updated: updated, dropped: dropped}
}

// IncUpdated counts one cache write from a valid response.
func (m *ListenerMetrics) IncUpdated() {
	if m == nil || m.updated == nil {
		return
	}
	m.updated.Inc()
}

// IncDropped counts one discarded response.
func (m *ListenerMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
