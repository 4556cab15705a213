package prometheus

import (
	"time"

	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/marmos91/daserver/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// refreshMetrics is the Prometheus implementation of simulation.Metrics.
type refreshMetrics struct {
	ticks         prometheus.Counter
	tickDuration  prometheus.Histogram
	tickFailures  prometheus.Counter
	signalErrors  *prometheus.CounterVec
	scenarioSteps *prometheus.CounterVec
}

// NewRefreshMetrics creates Prometheus-backed refresh engine metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRefreshMetrics() simulation.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &refreshMetrics{
		ticks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "daserver_refresh_ticks_total",
				Help: "Total number of refresh ticks",
			},
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "daserver_refresh_tick_duration_milliseconds",
				Help: "Duration of refresh ticks in milliseconds",
				Buckets: []float64{
					0.1, // signals only
					0.5,
					1,
					5,
					10,
					50,
					100, // half the default period
					200, // default period
					1000,
				},
			},
		),
		tickFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "daserver_refresh_tick_failures_total",
				Help: "Total number of failed signal or scenario updates across all ticks",
			},
		),
		signalErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_refresh_signal_errors_total",
				Help: "Total number of failed signal updates by signal",
			},
			[]string{"signal"},
		),
		scenarioSteps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_refresh_scenario_steps_total",
				Help: "Total number of scenario steps by scenario and result",
			},
			[]string{"scenario", "result"},
		),
	}
}

func (m *refreshMetrics) ObserveTick(d time.Duration, failures int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(float64(d.Microseconds()) / 1e3)
	if failures > 0 {
		m.tickFailures.Add(float64(failures))
	}
}

func (m *refreshMetrics) RecordSignalError(signal string) {
	if m == nil {
		return
	}
	m.signalErrors.WithLabelValues(signal).Inc()
}

func (m *refreshMetrics) RecordScenarioStep(scenario string, err error) {
	if m == nil {
		return
	}
	m.scenarioSteps.WithLabelValues(scenario, resultLabel(err)).Inc()
}
