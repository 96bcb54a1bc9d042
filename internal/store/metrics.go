package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_store_commits_total",
			Help: "Total number of checkpoint commits by outcome",
		},
		[]string{"status"},
	)

	commitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sui_indexer_store_commit_duration_seconds",
			Help:    "Duration of checkpoint commits, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	rowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_store_rows_written_total",
			Help: "Total number of rows submitted for writing by table",
		},
		[]string{"table"},
	)
)

func CommitFailureInc() {
	commits.WithLabelValues("failure").Inc()
}

func CommitObserve(duration time.Duration, events, transactions int) {
	commits.WithLabelValues("success").Inc()
	commitDuration.Observe(duration.Seconds())
	rowsWritten.WithLabelValues("events").Add(float64(events))
	rowsWritten.WithLabelValues("transactions").Add(float64(transactions))
}
