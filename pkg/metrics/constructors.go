package metrics

import (
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/marmos91/daserver/pkg/simulation"
)

// The Prometheus implementations live in pkg/metrics/prometheus and register
// themselves here from init. The indirection keeps this package free of an
// import cycle with the implementations.
var (
	newStoreMetrics     func() items.Metrics
	newAlarmMetrics     func() alarms.Metrics
	newRefreshMetrics   func() simulation.Metrics
	newNotifyMetrics    func() notify.Metrics
	newLifecycleMetrics func() lifecycle.Metrics
)

// NewStoreMetrics returns item store metrics, or nil when metrics are
// disabled or no implementation is linked in.
func NewStoreMetrics() items.Metrics {
	if !IsEnabled() || newStoreMetrics == nil {
		return nil
	}
	return newStoreMetrics()
}

// NewAlarmMetrics returns condition model metrics, or nil.
func NewAlarmMetrics() alarms.Metrics {
	if !IsEnabled() || newAlarmMetrics == nil {
		return nil
	}
	return newAlarmMetrics()
}

// NewRefreshMetrics returns refresh engine metrics, or nil.
func NewRefreshMetrics() simulation.Metrics {
	if !IsEnabled() || newRefreshMetrics == nil {
		return nil
	}
	return newRefreshMetrics()
}

// NewNotifyMetrics returns notification dispatcher metrics, or nil.
func NewNotifyMetrics() notify.Metrics {
	if !IsEnabled() || newNotifyMetrics == nil {
		return nil
	}
	return newNotifyMetrics()
}

// NewLifecycleMetrics returns lifecycle metrics, or nil.
func NewLifecycleMetrics() lifecycle.Metrics {
	if !IsEnabled() || newLifecycleMetrics == nil {
		return nil
	}
	return newLifecycleMetrics()
}

func RegisterStoreMetricsConstructor(c func() items.Metrics) { newStoreMetrics = c }
func RegisterAlarmMetricsConstructor(c func() alarms.Metrics) { newAlarmMetrics = c }
func RegisterRefreshMetricsConstructor(c func() simulation.Metrics) { newRefreshMetrics = c }
func RegisterNotifyMetricsConstructor(c func() notify.Metrics) { newNotifyMetrics = c }

// RegisterLifecycleMetricsConstructor registers the lifecycle metrics
// constructor. Called by pkg/metrics/prometheus during initialization.
func RegisterLifecycleMetricsConstructor(c func() lifecycle.Metrics) { newLifecycleMetrics = c }
