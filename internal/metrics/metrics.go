package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	LastCommittedCheckpoint = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_last_committed_checkpoint",
			Help: "The last checkpoint sequence successfully committed",
		},
		[]string{"stream"},
	)

	CheckpointLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_checkpoint_lag",
			Help: "Number of checkpoints between the node's latest and the last committed one",
		},
		[]string{"stream"},
	)

	CheckpointsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_checkpoints_committed_total",
			Help: "Total number of checkpoints committed",
		},
		[]string{"stream"},
	)

	EventsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_events_indexed_total",
			Help: "Total number of events indexed",
		},
		[]string{"stream"},
	)

	TransactionsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_transactions_indexed_total",
			Help: "Total number of transactions indexed",
		},
		[]string{"stream"},
	)

	CheckpointProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sui_indexer_checkpoint_processing_duration_seconds",
			Help:    "Time taken to fetch, process and commit one checkpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	CheckpointRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_checkpoint_retries_total",
			Help: "Total number of checkpoints abandoned after a batch failure and retried",
		},
		[]string{"stream"},
	)

	IndexingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_indexing_rate_checkpoints_per_second",
			Help: "Current indexing rate in checkpoints per second",
		},
		[]string{"stream"},
	)

	IngesterState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_ingester_state",
			Help: "Current ingestion loop state (1 for the active state)",
		},
		[]string{"stream", "state"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_indexer_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_indexer_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sui_indexer_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func CheckpointCommitted(stream string, sequence uint64, events, transactions int, duration time.Duration) {
	LastCommittedCheckpoint.WithLabelValues(stream).Set(float64(sequence))
	CheckpointsCommitted.WithLabelValues(stream).Inc()
	EventsIndexed.WithLabelValues(stream).Add(float64(events))
	TransactionsIndexed.WithLabelValues(stream).Add(float64(transactions))
	CheckpointProcessingTime.WithLabelValues(stream).Observe(duration.Seconds())
}

func CheckpointLagSet(stream string, latest, committed uint64) {
	lag := float64(0)
	if latest > committed {
		lag = float64(latest - committed)
	}
	CheckpointLag.WithLabelValues(stream).Set(lag)
}

func CheckpointRetryInc(stream string) {
	CheckpointRetries.WithLabelValues(stream).Inc()
}

func IndexingRateLog(stream string, rate float64) {
	IndexingRate.WithLabelValues(stream).Set(rate)
}

// IngesterStateSet marks state as the active one among states.
func IngesterStateSet(stream, state string, states []string) {
	for _, s := range states {
		v := float64(0)
		if s == state {
			v = 1
		}
		IngesterState.WithLabelValues(stream, s).Set(v)
	}
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
