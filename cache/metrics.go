package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts sources served by an earlier load in the same batch.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfcombine_cache_hits_total",
			Help: "Total number of sources coalesced onto an existing load",
		},
	)

	// CacheLoads counts loads started on a cache miss.
	CacheLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfcombine_cache_loads_total",
			Help: "Total number of source loads started",
		},
	)
)
