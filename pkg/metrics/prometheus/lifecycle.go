package prometheus

import (
	"time"

	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var serverStates = []string{
	lifecycle.StateNoConfig.String(),
	lifecycle.StateRunning.String(),
	lifecycle.StateFailed.String(),
}

// lifecycleMetrics is the Prometheus implementation of lifecycle.Metrics.
type lifecycleMetrics struct {
	stepDuration *prometheus.HistogramVec
	stepResults  *prometheus.CounterVec
	state        *prometheus.GaugeVec
	forced       *prometheus.CounterVec
}

// NewLifecycleMetrics creates Prometheus-backed lifecycle metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLifecycleMetrics() lifecycle.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	m := &lifecycleMetrics{
		stepDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "daserver_population_step_duration_seconds",
				Help: "Duration of population steps in seconds",
				Buckets: []float64{
					0.001, // catalog steps
					0.01,
					0.1,
					0.5,
					1,
					5, // mass items with batch delay
					10,
					30,
				},
			},
			[]string{"step"},
		),
		stepResults: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_population_steps_total",
				Help: "Total number of population steps by step and result",
			},
			[]string{"step", "result"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "daserver_server_state",
				Help: "Published server state (1 for the current state, 0 otherwise)",
			},
			[]string{"state"},
		),
		forced: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_forced_terminations_total",
				Help: "Total number of tasks abandoned at shutdown by task",
			},
			[]string{"task"}, // "population", "refresh"
		),
	}
	m.RecordServerState(lifecycle.StateNoConfig.String())
	return m
}

func (m *lifecycleMetrics) ObservePopulationStep(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	m.stepResults.WithLabelValues(step, resultLabel(err)).Inc()
}

func (m *lifecycleMetrics) RecordServerState(state string) {
	if m == nil {
		return
	}
	for _, s := range serverStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func (m *lifecycleMetrics) RecordForcedTermination(task string) {
	if m == nil {
		return
	}
	m.forced.WithLabelValues(task).Inc()
}
