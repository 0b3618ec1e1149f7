package metrics

import "github.com/marmos91/nexusd/pkg/reactor"

// NewReactorMetrics creates a Prometheus-backed reactor.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). Reactors
// built with a nil Metrics skip collection entirely.
//
// Example usage:
//
//	metrics.InitRegistry()
//	group := reactor.NewGroup(cores, queueDepth, metrics.NewReactorMetrics())
func NewReactorMetrics() reactor.Metrics {
	if !IsEnabled() || newPrometheusReactorMetrics == nil {
		return nil
	}
	return newPrometheusReactorMetrics()
}

// newPrometheusReactorMetrics is implemented in pkg/metrics/prometheus/reactor.go
var newPrometheusReactorMetrics func() reactor.Metrics

// RegisterReactorMetricsConstructor registers the Prometheus reactor metrics constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterReactorMetricsConstructor(constructor func() reactor.Metrics) {
	newPrometheusReactorMetrics = constructor
}
