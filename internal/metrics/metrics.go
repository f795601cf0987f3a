package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_executions_enqueued_total",
		Help: "Total number of executions placed on the async queue.",
	})

	ExecutionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_executions_total",
		Help: "Total number of workflow executions, labelled by status.",
	}, []string{"status"})

	ExecutionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_executions_dropped_total",
		Help: "Total number of executions rejected due to a full queue.",
	})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_actions_executed_total",
		Help: "Total number of actions dispatched, labelled by type and status.",
	}, []string{"action_type", "status"})

	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workflow_execution_duration_ms",
		Help:    "End-to-end workflow execution latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workflow_queue_utilization_ratio",
		Help: "Current async execution queue utilization (0-1).",
	})
)
