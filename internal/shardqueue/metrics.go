package shardqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueDepth is only written by the owning worker goroutine.
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "dispatch",
		Name:      "submissions_total",
		Help:      "Jobs accepted for execution.",
	}, []string{"shard"})

	queueFullTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "dispatch",
		Name:      "queue_full_total",
		Help:      "Enqueue attempts that timed out on a full shard.",
	}, []string{"shard"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "dispatch",
		Name:      "retries_total",
		Help:      "Job attempts repeated after a retryable failure.",
	}, []string{"shard"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "companion",
		Subsystem: "dispatch",
		Name:      "run_duration_seconds",
		Help:      "Job execution latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"shard"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "companion",
		Subsystem: "dispatch",
		Name:      "queue_depth",
		Help:      "Current depth of each shard queue.",
	}, []string{"shard"})
)

func labelFor(i int) string { return strconv.Itoa(i) }
