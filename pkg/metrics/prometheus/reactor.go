// Package prometheus implements the metrics interfaces of the node's
// packages on top of client_golang. Importing it for side effects registers
// the constructors with pkg/metrics.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nexusd/pkg/metrics"
	"github.com/marmos91/nexusd/pkg/reactor"
)

func init() {
	metrics.RegisterReactorMetricsConstructor(func() reactor.Metrics {
		return NewReactorMetrics()
	})
}

type reactorMetrics struct {
	polls      *prometheus.CounterVec
	tasksRun   *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
	rejected   *prometheus.CounterVec
}

// NewReactorMetrics returns nil if metrics are not enabled.
func NewReactorMetrics() *reactorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &reactorMetrics{
		polls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_reactor_polls_total",
				Help: "Total number of reactor poll iterations by core",
			},
			[]string{"core"},
		),
		tasksRun: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusd_reactor_tasks_per_poll",
				Help:    "Number of tasks run in a single reactor poll iteration",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
			},
			[]string{"core"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexusd_reactor_queue_depth",
				Help: "Number of submitted tasks waiting to be admitted by core",
			},
			[]string{"core"},
		),
		rejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_reactor_rejected_total",
				Help: "Total number of submissions rejected because the queue was full",
			},
			[]string{"core"},
		),
	}
}

func (m *reactorMetrics) ObservePoll(core int, tasks int) {
	if m == nil {
		return
	}
	c := strconv.Itoa(core)
	m.polls.WithLabelValues(c).Inc()
	m.tasksRun.WithLabelValues(c).Observe(float64(tasks))
}

func (m *reactorMetrics) SetQueueDepth(core int, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(strconv.Itoa(core)).Set(float64(depth))
}

func (m *reactorMetrics) IncRejected(core int) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(strconv.Itoa(core)).Inc()
}
