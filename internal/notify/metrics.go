package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusPublished = "published"
	statusFailed    = "failed"
	statusDropped   = "dropped"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sui_indexer_notifications_total",
		Help: "Total number of checkpoint notifications by outcome",
	},
	[]string{"status"},
)
