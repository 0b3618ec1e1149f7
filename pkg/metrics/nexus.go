package metrics

import (
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// NewNexusMetrics creates a Prometheus-backed nexus.Metrics instance, or nil
// when metrics are disabled.
func NewNexusMetrics() nexus.Metrics {
	if !IsEnabled() || newPrometheusNexusMetrics == nil {
		return nil
	}
	return newPrometheusNexusMetrics()
}

// NewReservationMetrics creates a Prometheus-backed reservation.Metrics
// instance, or nil when metrics are disabled.
func NewReservationMetrics() reservation.Metrics {
	if !IsEnabled() || newPrometheusReservationMetrics == nil {
		return nil
	}
	return newPrometheusReservationMetrics()
}

var (
	newPrometheusNexusMetrics       func() nexus.Metrics
	newPrometheusReservationMetrics func() reservation.Metrics
)

// RegisterNexusMetricsConstructor registers the Prometheus nexus metrics constructor.
func RegisterNexusMetricsConstructor(constructor func() nexus.Metrics) {
	newPrometheusNexusMetrics = constructor
}

// RegisterReservationMetricsConstructor registers the Prometheus reservation metrics constructor.
func RegisterReservationMetricsConstructor(constructor func() reservation.Metrics) {
	newPrometheusReservationMetrics = constructor
}
