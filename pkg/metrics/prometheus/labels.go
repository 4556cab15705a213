// Package prometheus implements the component metrics interfaces on top of
// the shared registry in pkg/metrics. Importing it for side effects registers
// every constructor:
//
//	import _ "github.com/marmos91/daserver/pkg/metrics/prometheus"
package prometheus

import (
	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/metrics"
)

func init() {
	metrics.RegisterStoreMetricsConstructor(NewStoreMetrics)
	metrics.RegisterAlarmMetricsConstructor(NewAlarmMetrics)
	metrics.RegisterRefreshMetricsConstructor(NewRefreshMetrics)
	metrics.RegisterNotifyMetricsConstructor(NewNotifyMetrics)
	metrics.RegisterLifecycleMetricsConstructor(NewLifecycleMetrics)
}

// resultLabel maps an error onto a bounded label value.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := errors.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}
