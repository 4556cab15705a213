package prometheus

import (
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// alarmMetrics is the Prometheus implementation of alarms.Metrics.
type alarmMetrics struct {
	transitions *prometheus.CounterVec
	events      *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewAlarmMetrics creates Prometheus-backed condition model metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAlarmMetrics() alarms.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &alarmMetrics{
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_condition_transitions_total",
				Help: "Total number of condition transitions by definition and resulting activity",
			},
			[]string{"definition", "active"},
		),
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_events_total",
				Help: "Total number of raised events by kind",
			},
			[]string{"kind"}, // "simple", "tracking", "condition"
		),
		rejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_condition_rejected_total",
				Help: "Total number of rejected condition model operations by operation and error code",
			},
			[]string{"operation", "code"},
		),
	}
}

func (m *alarmMetrics) RecordTransition(definition string, active bool) {
	if m == nil {
		return
	}
	state := "false"
	if active {
		state = "true"
	}
	m.transitions.WithLabelValues(definition, state).Inc()
}

func (m *alarmMetrics) RecordEvent(kind alarms.EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind.String()).Inc()
}

func (m *alarmMetrics) RecordRejected(operation string, err error) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(operation, resultLabel(err)).Inc()
}
