package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/metrics"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/reservation"
)

func init() {
	metrics.RegisterNexusMetricsConstructor(func() nexus.Metrics {
		return NewNexusMetrics()
	})
	metrics.RegisterReservationMetricsConstructor(func() reservation.Metrics {
		return NewReservationMetrics()
	})
}

// nexusMetrics is the Prometheus implementation of nexus.Metrics.
type nexusMetrics struct {
	ioOps        *prometheus.CounterVec
	ioBytes      *prometheus.CounterVec
	ioDuration   *prometheus.HistogramVec
	stateChanges *prometheus.CounterVec
	childFaults  prometheus.Counter
}

// NewNexusMetrics returns nil if metrics are not enabled.
func NewNexusMetrics() *nexusMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &nexusMetrics{
		ioOps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_nexus_io_total",
				Help: "Total number of nexus I/O operations by operation and status",
			},
			[]string{"op", "status"}, // op: "read", "write", "flush"; status: error code or "ok"
		),
		ioBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_nexus_io_bytes_total",
				Help: "Total bytes transferred by successful nexus I/O by operation",
			},
			[]string{"op"},
		),
		ioDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusd_nexus_io_duration_milliseconds",
				Help:    "Duration of nexus I/O operations in milliseconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"op"},
		),
		stateChanges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_nexus_state_transitions_total",
				Help: "Total number of nexus state transitions by target state",
			},
			[]string{"state"},
		),
		childFaults: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nexusd_nexus_child_faults_total",
				Help: "Total number of nexus children moved to the faulted state",
			},
		),
	}
}

func (m *nexusMetrics) ObserveIO(op string, bytes int, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = nerrors.CodeOf(err).String()
	} else {
		m.ioBytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ioOps.WithLabelValues(op, status).Inc()
	m.ioDuration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *nexusMetrics) ObserveState(state string) {
	if m == nil {
		return
	}
	m.stateChanges.WithLabelValues(state).Inc()
}

func (m *nexusMetrics) IncChildFault() {
	if m == nil {
		return
	}
	m.childFaults.Inc()
}

// reservationMetrics is the Prometheus implementation of reservation.Metrics.
type reservationMetrics struct {
	acquires  *prometheus.CounterVec
	conflicts prometheus.Counter
}

// NewReservationMetrics returns nil if metrics are not enabled.
func NewReservationMetrics() *reservationMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &reservationMetrics{
		acquires: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_reservation_acquires_total",
				Help: "Total number of successful reservation handshakes by outcome",
			},
			[]string{"action"}, // "held", "acquired", "preempted"
		),
		conflicts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nexusd_reservation_conflicts_total",
				Help: "Total number of handshakes that ended in a reservation conflict",
			},
		),
	}
}

func (m *reservationMetrics) ObserveAcquire(action string) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(action).Inc()
}

func (m *reservationMetrics) IncConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
