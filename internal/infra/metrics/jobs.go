package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsProcessedTotal, jobsRequeuedTotal, jobsDroppedTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_jobs_processed_total",
		Help: "Total number of queue jobs processed, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'duplicate'
)

var jobsRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orchestrator_jobs_requeued_total",
		Help: "Jobs put back on the queue after a retryable failure.",
	},
)

var jobsDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orchestrator_jobs_dropped_total",
		Help: "Malformed envelopes dropped without processing.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncRequeue() { jobsRequeuedTotal.Inc() }

func IncDropped() { jobsDroppedTotal.Inc() }

func norm(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return s
}
