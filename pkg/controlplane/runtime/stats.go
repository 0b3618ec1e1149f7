package runtime

import (
	"github.com/marmos91/nexusd/pkg/bdev"
	"github.com/marmos91/nexusd/pkg/metrics"
	"github.com/marmos91/nexusd/pkg/reactor"
)

var cacheTypes = []string{"block", "index"}

// registerStatsPoller samples the cache counters of every badger-backed
// disk on the init reactor. Nothing is registered when metrics are off.
func (r *Runtime) registerStatsPoller(rc *reactor.Context) {
	m := metrics.NewBadgerMetrics()
	if m == nil {
		return
	}

	rc.RegisterPoller("badger-stats", r.opts.StatsInterval, func(rc *reactor.Context) {
		recordCacheStats(r.devices, m)
	})
}

func recordCacheStats(devices *bdev.Registry, m metrics.BadgerMetrics) {
	for _, name := range devices.Names() {
		d, ok := devices.Lookup(name)
		if !ok {
			continue
		}
		b, ok := d.(*bdev.Badger)
		if !ok {
			continue
		}
		for _, ct := range cacheTypes {
			hits, misses, ratio := b.CacheStats(ct)
			m.RecordCacheStats(name, ct, hits, misses, ratio)
		}
	}
}
