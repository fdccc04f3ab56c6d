package combiner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts completed batches by result ("success", "failure", "no_sources").
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfcombine_batches_total",
			Help: "Total combine batches by result",
		},
		[]string{"result"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfcombine_batch_duration_seconds",
			Help:    "Combine batch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	SourcesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfcombine_sources_total",
			Help: "Total sources submitted",
		},
	)
)
