// Package metrics exposes Prometheus instrumentation for the correlation
// pipeline. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	// Events seen by the plugin, by whether a rule tracks them
	EventsReceived *prometheus.CounterVec

	// Correlation tasks handed to the scheduler
	TasksScheduled prometheus.Counter

	// Terminal resolver states
	Resolutions *prometheus.CounterVec

	// Composed reports by fault kind
	Reports *prometheus.CounterVec

	// Tasks waiting for their window to close or for a worker
	PendingTasks prometheus.Gauge

	// Time spent in one resolution
	ResolveLatency prometheus.Histogram
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "freezewatch_events_received_total",
			Help: "Events received by the correlation plugin",
		}, []string{"tracked"}),

		TasksScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "freezewatch_tasks_scheduled_total",
			Help: "Correlation tasks scheduled",
		}),

		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "freezewatch_resolutions_total",
			Help: "Resolver outcomes by terminal state",
		}, []string{"state"}),

		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "freezewatch_reports_total",
			Help: "Composed freeze reports by fault kind",
		}, []string{"kind"}),

		PendingTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "freezewatch_pending_tasks",
			Help: "Correlation tasks not yet executed",
		}),

		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "freezewatch_resolve_duration_seconds",
			Help:    "Duration of one resolution including store queries and composition",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncEventReceived counts one incoming event.
func (m *Metrics) IncEventReceived(tracked bool) {
	if m != nil {
		label := "false"
		if tracked {
			label = "true"
		}
		m.EventsReceived.WithLabelValues(label).Inc()
	}
}

// IncScheduled counts one scheduled task.
func (m *Metrics) IncScheduled() {
	if m != nil {
		m.TasksScheduled.Inc()
	}
}

// IncResolution counts one terminal resolver state.
func (m *Metrics) IncResolution(state string) {
	if m != nil {
		m.Resolutions.WithLabelValues(state).Inc()
	}
}

// IncReport counts one composed report.
func (m *Metrics) IncReport(kind string) {
	if m != nil {
		m.Reports.WithLabelValues(kind).Inc()
	}
}

// SetPending records the number of tasks not yet executed.
func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingTasks.Set(float64(n))
	}
}

// ObserveResolve records the duration of one resolution.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}
