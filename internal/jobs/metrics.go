package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctxdoc",
		Subsystem: "jobs",
		Name:      "total",
		Help:      "Translation jobs by provider and outcome.",
	}, []string{"provider", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ctxdoc",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Wall time of a job including rate-limit wait.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"provider"})

	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctxdoc",
		Subsystem: "batch",
		Name:      "items_total",
		Help:      "Finished batch items by status.",
	}, []string{"status"})

	batchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ctxdoc",
		Subsystem: "batch",
		Name:      "queue_depth",
		Help:      "Batch items waiting behind the one in flight.",
	})
)
