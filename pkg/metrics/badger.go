package metrics

// BadgerMetrics records cache statistics of badger-backed disks.
type BadgerMetrics interface {
	// RecordCacheStats takes a snapshot of cumulative counters for one
	// device and cache type ("block" or "index").
	RecordCacheStats(device, cacheType string, hits, misses uint64, ratio float64)
}

// NewBadgerMetrics returns nil when metrics are disabled.
func NewBadgerMetrics() BadgerMetrics {
	if !IsEnabled() || newPrometheusBadgerMetrics == nil {
		return nil
	}
	return newPrometheusBadgerMetrics()
}

var newPrometheusBadgerMetrics func() BadgerMetrics

// RegisterBadgerMetricsConstructor registers the Prometheus badger metrics constructor.
func RegisterBadgerMetricsConstructor(constructor func() BadgerMetrics) {
	newPrometheusBadgerMetrics = constructor
}
