package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nexusd/pkg/metrics"
)

func init() {
	metrics.RegisterBadgerMetricsConstructor(func() metrics.BadgerMetrics {
		return NewBadgerMetrics()
	})
}

// badgerMetrics is the Prometheus implementation for BadgerDB disk metrics.
type badgerMetrics struct {
	cacheHitRatio *prometheus.GaugeVec
	cacheMisses   *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec

	mu   sync.Mutex
	last map[[2]string][2]uint64
}

// NewBadgerMetrics creates a new Prometheus-backed BadgerDB metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBadgerMetrics() *badgerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &badgerMetrics{
		cacheHitRatio: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexusd_badger_cache_hit_ratio",
				Help: "BadgerDB cache hit ratio (0.0 to 1.0) by device and cache type",
			},
			[]string{"device", "cache_type"}, // cache_type: "block", "index"
		),
		cacheMisses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_badger_cache_misses_total",
				Help: "Total number of BadgerDB cache misses by device and cache type",
			},
			[]string{"device", "cache_type"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusd_badger_cache_hits_total",
				Help: "Total number of BadgerDB cache hits by device and cache type",
			},
			[]string{"device", "cache_type"},
		),
		last: make(map[[2]string][2]uint64),
	}
}

// RecordCacheStats converts cumulative badger counters into counter
// increments. A counter that went backwards (device reopened) restarts from
// the new value.
func (m *badgerMetrics) RecordCacheStats(device, cacheType string, hits, misses uint64, ratio float64) {
	if m == nil {
		return
	}

	key := [2]string{device, cacheType}
	m.mu.Lock()
	prev := m.last[key]
	m.last[key] = [2]uint64{hits, misses}
	m.mu.Unlock()

	m.cacheHitRatio.WithLabelValues(device, cacheType).Set(ratio)
	m.cacheHits.WithLabelValues(device, cacheType).Add(float64(delta(prev[0], hits)))
	m.cacheMisses.WithLabelValues(device, cacheType).Add(float64(delta(prev[1], misses)))
}

func delta(prev, cur uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
