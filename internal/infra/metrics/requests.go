package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(requestsDispatchedTotal, waitLatencyMs, queuePublishErrors)
}

var requestsDispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_requests_dispatched_total",
		Help: "Requests seen by the dispatcher, labeled by path taken.",
	},
	[]string{"mode"}, // 'sync', 'async', 'poll'
)

var waitLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orchestrator_wait_latency_ms",
		Help:    "Time spent polling the record store before a response.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 25000},
	},
	[]string{"outcome"}, // 'completed', 'failed', 'pending'
)

var queuePublishErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orchestrator_queue_publish_errors_total",
		Help: "Failed publishes to the work queue.",
	},
)

func IncDispatch(mode string) {
	requestsDispatchedTotal.WithLabelValues(norm(mode)).Inc()
}

func ObserveWait(outcome string, ms float64) {
	waitLatencyMs.WithLabelValues(norm(outcome)).Observe(ms)
}

func IncQueuePublishError() { queuePublishErrors.Inc() }
