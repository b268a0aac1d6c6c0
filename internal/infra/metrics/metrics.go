package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rollout"

// registry holds the rollout collectors together with the runtime collectors of the job.
var registry = func() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}()

// Gatherer exposes the registry the rollout collectors are registered on.
func Gatherer() prometheus.Gatherer {
	return registry
}

// Wait outcomes.
const (
	OutcomeReady   = "ready"
	OutcomeStopped = "stopped"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

// Wait operations.
const (
	OperationWaitReady = "wait_ready"
	OperationWaitStop  = "wait_stop"
)

var waitDurationSeconds = promauto.With(registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "wait_duration_seconds",
		Help:      "Duration of steady state waits by operation and outcome.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"operation", "outcome"},
)

var gateReachedTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_reached_total",
		Help:      "Total number of convergence gates reached (count, images, running, steady).",
	},
	[]string{"gate"},
)

var clusterEventsTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cluster_events_total",
		Help:      "Total number of new cluster events shown while waiting, by scope.",
	},
	[]string{"scope"},
)

var controllerLookupRetriesTotal = promauto.With(registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "controller_lookup_retries_total",
		Help:      "Total number of controller lookups retried because every kind failed.",
	},
)

var scaleTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scale_total",
		Help:      "Total number of scale mutations issued, by controller kind.",
	},
	[]string{"kind"},
)

// ObserveWait records how long a wait took and how it ended.
func ObserveWait(operation, outcome string, d time.Duration) {
	waitDurationSeconds.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// RecordGateReached increments the counter the first time a wait passes a gate.
func RecordGateReached(gate string) {
	gateReachedTotal.WithLabelValues(gate).Inc()
}

// RecordClusterEvents adds the number of newly shown events.
func RecordClusterEvents(scope string, n int) {
	clusterEventsTotal.WithLabelValues(scope).Add(float64(n))
}

func RecordControllerLookupRetry() {
	controllerLookupRetriesTotal.Inc()
}

func RecordScale(kind string) {
	scaleTotal.WithLabelValues(kind).Inc()
}

var jobsTotal = promauto.With(registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Total number of finished operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// RecordJob counts a finished operation. result is "succeeded" or "failed".
func RecordJob(operation, result string) {
	jobsTotal.WithLabelValues(operation, result).Inc()
}
