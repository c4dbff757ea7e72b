package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reifydb/reifydb-sub032/internal/util/metrics"
)

var (
	pollDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flow_runtime_poll_duration_seconds",
		Help:    "the length of time it took to process one CDC poll batch",
		Buckets: metrics.LatencyBuckets,
	})
	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_runtime_poll_errors_total",
		Help: "the number of times a poll tick failed to advance the checkpoint",
	})
	dispatchDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flow_dispatch_duration_seconds",
		Help:    "the length of time it took to dispatch one CDC record through a flow's graph",
		Buckets: metrics.LatencyBuckets,
	}, metrics.FlowLabels)
	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_dispatch_failures_total",
		Help: "the number of times a flow's dispatch failed and the flow was marked failed",
	}, metrics.FlowLabels)
)
