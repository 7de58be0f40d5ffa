package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCall("sent")
		m.AddPending(1)
		m.RecordMessage("reply")
		m.RecordReply("resolved")
		m.RecordHandler("Sum", "ok", time.Millisecond)
		m.RecordUnknownHandler()
		m.RecordConsole()
		m.RecordFrame("ws", "in", "message")
		m.BridgeAttached()
		m.BridgeDetached()
		m.RecordTransition("ready")
		NewTimer(m, "Sum").Stop("ok")
	})
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordCall("sent")
	a.RecordCall("sent")
	b.RecordCall("dropped")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.CallsTotal.WithLabelValues("sent")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CallsTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.CallsTotal.WithLabelValues("dropped")))
}

func TestPendingGauge(t *testing.T) {
	m := NewMetrics()
	m.AddPending(3)
	m.AddPending(-2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingCalls))
}

func TestHandlerTimer(t *testing.T) {
	m := NewMetrics()
	NewTimer(m, "Sum").Stop("ok")
	m.RecordUnknownHandler()
	m.RecordUnknownHandler()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerCalls.WithLabelValues("Sum", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HandlerCalls))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HandlerDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnknownHandlers))
}

func TestGathererExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.BridgeAttached()

	families, err := m.Gatherer().Gather()
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["jsbridge_bridges_active"])
	assert.True(t, names["jsbridge_uptime_seconds"])
}
