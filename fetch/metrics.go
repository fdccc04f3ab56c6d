package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRequests counts HTTP round trips by status ("200", "404", "network_error").
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfcombine_fetch_requests_total",
			Help: "Total remote source fetches by status",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfcombine_fetch_duration_seconds",
			Help:    "Remote source fetch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	FetchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfcombine_fetch_bytes_total",
			Help: "Total bytes downloaded for remote sources",
		},
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfcombine_fetch_retries_total",
			Help: "Total remote fetch retry attempts",
		},
	)

	// ResponseCache tracks the optional response cache by result ("hit", "miss", "error").
	ResponseCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfcombine_fetch_cache_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)
)
