package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sanspareilsmyn/parkinglens/internal/cache"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkinglens_cache_requests_total",
			Help: "Dashboard cache lookups partitioned by cache and result (hit or miss).",
		},
		[]string{"cache", "result"},
	)

	buildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkinglens_dashboard_build_seconds",
			Help:    "Time spent building a dashboard report, by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

type cacheObserver struct {
	hits, misses prometheus.Counter
}

func (o cacheObserver) CacheHit()  { o.hits.Inc() }
func (o cacheObserver) CacheMiss() { o.misses.Inc() }

// NewCacheObserver reports hits and misses of the named cache to Prometheus.
func NewCacheObserver(name string) cache.Observer {
	return cacheObserver{
		hits:   cacheRequests.WithLabelValues(name, "hit"),
		misses: cacheRequests.WithLabelValues(name, "miss"),
	}
}
