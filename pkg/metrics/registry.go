// Package metrics holds the Prometheus registry shared by the server and
// the constructors for every instrumented component.
//
// Metrics are opt-in. Until InitRegistry is called every constructor returns
// nil, and components treat a nil Metrics as "not instrumented".
//
// Example usage:
//
//	metrics.InitRegistry()
//	store := items.NewStore(items.WithMetrics(metrics.NewStoreMetrics()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with the Go runtime and process
// collectors. Calling it again keeps the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return registry
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset drops the registry. Only tests should need it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}
