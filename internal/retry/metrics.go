package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Attempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_retry_attempts_total",
			Help: "Total number of attempts made by operation, including the first",
		},
		[]string{"operation"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_retries_total",
			Help: "Total number of retries by operation",
		},
		[]string{"operation"},
	)

	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_retry_failures_total",
			Help: "Total number of failed attempts by operation and class",
		},
		[]string{"operation", "class"},
	)

	Exhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_indexer_retry_exhausted_total",
			Help: "Total number of operations that ran out of attempts",
		},
		[]string{"operation"},
	)
)

func AttemptInc(operation string) {
	Attempts.WithLabelValues(operation).Inc()
}

func RetryInc(operation string) {
	Retries.WithLabelValues(operation).Inc()
}

func FailureInc(operation string, class Class) {
	Failures.WithLabelValues(operation, class.String()).Inc()
}

func ExhaustedInc(operation string) {
	Exhausted.WithLabelValues(operation).Inc()
}
