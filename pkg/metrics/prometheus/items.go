package prometheus

import (
	"time"

	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics is the Prometheus implementation of items.Metrics.
type storeMetrics struct {
	setValues   *prometheus.CounterVec
	setDuration prometheus.Histogram
	itemCount   prometheus.Gauge
}

// NewStoreMetrics creates Prometheus-backed item store metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics() items.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &storeMetrics{
		setValues: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_item_set_value_total",
				Help: "Total number of item value updates by result",
			},
			[]string{"result"},
		),
		setDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "daserver_item_set_value_duration_microseconds",
				Help: "Duration of item value updates in microseconds",
				Buckets: []float64{
					1,    // uncontended
					5,    // 5us
					10,   // 10us
					50,   // 50us
					100,  // 100us
					500,  // 500us - observer fan-out
					1000, // 1ms
					5000, // 5ms - lock contention
				},
			},
		),
		itemCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "daserver_items",
				Help: "Number of items in the address space",
			},
		),
	}
}

func (m *storeMetrics) ObserveSetValue(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.setValues.WithLabelValues(resultLabel(err)).Inc()
	m.setDuration.Observe(float64(d.Nanoseconds()) / 1e3)
}

func (m *storeMetrics) RecordItemCount(n int) {
	if m == nil {
		return
	}
	m.itemCount.Set(float64(n))
}
