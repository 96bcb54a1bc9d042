package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_wal_maintenance_runs_total",
			Help: "Total number of WAL maintenance runs by outcome",
		},
		[]string{"status"},
	)

	walDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sui_indexer_wal_maintenance_duration_seconds",
			Help:    "Duration of WAL maintenance runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	walLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_indexer_wal_maintenance_last_run_timestamp",
			Help: "Unix timestamp of the last WAL maintenance run",
		},
	)

	walFrames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_wal_frames",
			Help: "Frames in the WAL and frames moved into the database by the last checkpoint",
		},
		[]string{"kind"},
	)

	walBusy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_wal_checkpoint_busy_total",
			Help: "WAL checkpoints that could not complete because of a concurrent reader or writer, by mode",
		},
		[]string{"mode"},
	)

	dbSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_indexer_db_size_bytes",
			Help: "SQLite database size in bytes, including the WAL",
		},
	)
)

func WALRunObserve(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	walRuns.WithLabelValues(status).Inc()
	walDuration.Observe(duration.Seconds())
	walLastRun.Set(float64(time.Now().UTC().Unix()))
}

func WALCheckpointLog(mode string, busy bool, logFrames, checkpointed int) {
	walFrames.WithLabelValues("log").Set(float64(logFrames))
	walFrames.WithLabelValues("checkpointed").Set(float64(checkpointed))
	if busy {
		walBusy.WithLabelValues(mode).Inc()
	}
}

func DBSizeLog(sizeBytes int64) {
	dbSize.Set(float64(sizeBytes))
}
