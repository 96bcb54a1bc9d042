package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_indexer_batches_in_flight",
			Help: "Number of batches currently being processed",
		},
	)

	batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_batches_total",
			Help: "Total number of batches by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sui_indexer_batch_duration_seconds",
			Help:    "Time taken to process one batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	itemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_items_processed_total",
			Help: "Total number of items processed by kind",
		},
		[]string{"kind"},
	)
)

func InFlightInc() {
	batchesInFlight.Inc()
}

func InFlightDec() {
	batchesInFlight.Dec()
}

func BatchObserve(kind Kind, duration time.Duration, items int, ok bool) {
	status := "failure"
	if ok {
		status = "success"
		itemsProcessed.WithLabelValues(kind.String()).Add(float64(items))
	}
	batches.WithLabelValues(kind.String(), status).Inc()
	batchDuration.WithLabelValues(kind.String()).Observe(duration.Seconds())
}

func BatchSkippedInc(kind Kind) {
	batches.WithLabelValues(kind.String(), "skipped").Inc()
}
