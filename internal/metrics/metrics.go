// Package metrics exposes Prometheus instrumentation for deployment and
// failover runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Deployment metrics
	deployRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierctl",
			Subsystem: "deploy",
			Name:      "runs_total",
			Help:      "Total number of deployment runs by outcome",
		},
		[]string{"outcome"},
	)

	deployDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tierctl",
			Subsystem: "deploy",
			Name:      "run_duration_seconds",
			Help:      "Duration of deployment runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)

	nodeResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierctl",
			Subsystem: "deploy",
			Name:      "node_results_total",
			Help:      "Terminal node states by result",
		},
		[]string{"result"},
	)

	nodeAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tierctl",
			Subsystem: "deploy",
			Name:      "node_attempts",
			Help:      "Bootstrap action attempts per node",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// Secret binding metrics
	bindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierctl",
			Subsystem: "secrets",
			Name:      "bindings_total",
			Help:      "Principal binding decisions by result",
		},
		[]string{"result"},
	)

	// Failover metrics
	failoverRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierctl",
			Subsystem: "failover",
			Name:      "runs_total",
			Help:      "Total number of failover runs by outcome",
		},
		[]string{"outcome"},
	)

	failoverGroupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierctl",
			Subsystem: "failover",
			Name:      "group_duration_seconds",
			Help:      "Duration of failover boot groups in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"group"},
	)
)

func init() {
	prometheus.MustRegister(
		deployRunsTotal,
		deployDuration,
		nodeResultsTotal,
		nodeAttempts,
		bindingsTotal,
		failoverRunsTotal,
		failoverGroupDuration,
	)
}

// RecordDeployRun records a completed deployment run.
func RecordDeployRun(outcome string, duration time.Duration) {
	deployRunsTotal.WithLabelValues(outcome).Inc()
	deployDuration.Observe(duration.Seconds())
}

// RecordNodeResult records a node's terminal state and attempt count.
func RecordNodeResult(result string, attempts int) {
	nodeResultsTotal.WithLabelValues(result).Inc()
	if attempts > 0 {
		nodeAttempts.Observe(float64(attempts))
	}
}

// RecordBinding records a principal binding decision.
func RecordBinding(result string) {
	bindingsTotal.WithLabelValues(result).Inc()
}

// RecordFailoverRun records a terminal failover run.
func RecordFailoverRun(outcome string) {
	failoverRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordFailoverGroup records the duration of one boot group.
func RecordFailoverGroup(group string, duration time.Duration) {
	failoverGroupDuration.WithLabelValues(group).Observe(duration.Seconds())
}
