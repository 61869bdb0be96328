package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncEventReceived(true)
	m.IncEventReceived(true)
	m.IncEventReceived(false)
	m.IncScheduled()
	m.IncResolution("COMPLETE")
	m.IncReport("APP_FREEZE")
	m.SetPending(3)
	m.ObserveResolve(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksScheduled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("COMPLETE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reports.WithLabelValues("APP_FREEZE")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingTasks))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncEventReceived(true)
		m.IncScheduled()
		m.IncResolution("NO_RULE")
		m.IncReport("SYSTEM_FREEZE")
		m.SetPending(1)
		m.ObserveResolve(time.Second)
	})
}
