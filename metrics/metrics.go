package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// histograms
var (
	// buckets for seconds resolutions of histograms
	buckets         = []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10}
	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zoomview",
			Name:      "resolve_duration_seconds",
			Help:      "Time taken to resolve a view, cache hits included.",
			Buckets:   buckets,
		},
	)
	SupplierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zoomview",
			Name:      "supplier_duration_seconds",
			Help:      "Time taken to compute the buckets of one statistic.",
			Buckets:   buckets,
		},
		[]string{"path"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zoomview",
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve an HTTP request.",
			Buckets:   buckets,
		},
		[]string{"route", "code"},
	)
)

// counters
var (
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "cache_hits_total",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "cache_misses_total",
	})
	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "cache_evictions_total",
	})
	PrefetchComputed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "prefetch_computed_total",
		Help:      "Neighbour views computed by the prefetch worker.",
	})
	PrefetchStale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "prefetch_stale_total",
		Help:      "Prefetched views dropped because they left the live neighbourhood.",
	})
	PrefetchDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "prefetch_dropped_total",
		Help:      "Prefetch tasks dropped because the queue was full.",
	})
	PrefetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "prefetch_errors_total",
	})
	SupplierPath = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoomview",
		Name:      "supplier_path_total",
		Help:      "Statistics served from materialized tables or computed on demand.",
	}, []string{"path"})
)

// gauges
var (
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zoomview",
		Name:      "cache_entries",
		Help:      "Views held in the neighbour cache.",
	})
	PrefetchQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zoomview",
		Name:      "prefetch_queue_length",
	})
)

const (
	PathMaterialized = "materialized"
	PathOnDemand     = "ondemand"
)

func init() {
	prometheus.DefaultRegisterer.MustRegister(
		ResolveDuration,
		SupplierDuration,
		RequestDuration,
		CacheHits,
		CacheMisses,
		CacheEvictions,
		PrefetchComputed,
		PrefetchStale,
		PrefetchDropped,
		PrefetchErrors,
		SupplierPath,
		CacheEntries,
		PrefetchQueue,
	)
}
