package prometheus

import (
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// notifyMetrics is the Prometheus implementation of notify.Metrics.
type notifyMetrics struct {
	delivered  *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// NewNotifyMetrics creates Prometheus-backed dispatcher metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewNotifyMetrics() notify.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &notifyMetrics{
		delivered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_notifications_delivered_total",
				Help: "Total number of notification deliveries by sink, kind and result",
			},
			[]string{"sink", "kind", "result"},
		),
		dropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "daserver_notifications_dropped_total",
				Help: "Total number of notifications dropped because the queue was full",
			},
			[]string{"kind"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "daserver_notification_queue_depth",
				Help: "Notifications waiting for delivery",
			},
		),
	}
}

func (m *notifyMetrics) RecordDelivered(sink string, kind notify.Kind, err error) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(sink, kind.String(), resultLabel(err)).Inc()
}

func (m *notifyMetrics) RecordDropped(kind notify.Kind) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(kind.String()).Inc()
}

func (m *notifyMetrics) RecordQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
