package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRelayMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.IncPublished()
	m.IncPublished()
	m.IncFailed()
	m.IncDeadLettered()
	m.ObserveSweep(120 * time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.published))
	require.Equal(t, float64(1), testutil.ToFloat64(m.failed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.deadLettered))
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.IncPublished()
	m.IncFailed()
	m.IncDeadLettered()
	m.ObserveSweep(time.Second)

	empty := NewRelayMetrics(nil)
	empty.IncPublished()
	empty.ObserveSweep(time.Second)
}
