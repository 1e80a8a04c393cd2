package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for task results.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	tasksStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollcat_tasks_started_total",
			Help: "Total number of tasks submitted to the worker pool.",
		},
		[]string{"kind"},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollcat_tasks_finished_total",
			Help: "Total number of tasks finished by the worker pool.",
		},
		[]string{"kind", "result"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollcat_task_duration_seconds",
			Help:    "Time a worker spent on a task, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	handles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollcat_handles",
			Help: "Number of connection handles in the registry.",
		},
	)

	handlesReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pollcat_handles_reaped_total",
			Help: "Total number of handles evicted by the reaper.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollcat_pool_queue_depth",
			Help: "Number of tasks waiting for a worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksStarted)
	prometheus.MustRegister(tasksFinished)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(handles)
	prometheus.MustRegister(handlesReaped)
	prometheus.MustRegister(queueDepth)

	for _, k := range taskKinds {
		tasksStarted.WithLabelValues(k.String())
		tasksFinished.WithLabelValues(k.String(), resultOK)
		tasksFinished.WithLabelValues(k.String(), resultError)
	}
}

func observeTask(kind TaskKind, err error, d time.Duration) {
	res := resultOK
	if err != nil {
		res = resultError
	}
	tasksFinished.WithLabelValues(kind.String(), res).Inc()
	taskDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}
