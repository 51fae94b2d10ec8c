package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_runs_total",
		Help: "Purge runs of cancelled meetings by result.",
	}, []string{"result"})

	purgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_meetings_purged_total",
		Help: "Cancelled meetings permanently deleted by the cleanup job.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cleanup_run_duration_seconds",
		Help:    "Duration of purge runs.",
		Buckets: prometheus.DefBuckets,
	})
)
