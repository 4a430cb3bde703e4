package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctxdoc",
		Subsystem: "session",
		Name:      "commits_total",
		Help:      "Debounced edits committed to revision history, by whether a revision was added.",
	}, []string{"appended"})

	highlightDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ctxdoc",
		Subsystem: "session",
		Name:      "highlight_seconds",
		Help:      "Time spent recomputing change ranges.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	flushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ctxdoc",
		Subsystem: "session",
		Name:      "flush_failures_total",
		Help:      "Revision history flushes that failed.",
	})
)
