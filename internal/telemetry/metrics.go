package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_jobs_submitted_total", Help: "Jobs submitted to the queue"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_jobs_completed_total", Help: "Jobs completed successfully"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_jobs_failed_total", Help: "Jobs that exhausted retries"})
	JobsRetried      = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_jobs_retried_total", Help: "Job retry attempts"})
	JobsCancelled    = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_jobs_cancelled_total", Help: "Jobs cancelled while queued"})
	BatchesStarted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_batches_started_total", Help: "Batch runs started"})
	BatchesFinished  = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_batches_finished_total", Help: "Batch runs finished"})
	GateRevisions    = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_gate_revisions_total", Help: "Quality gate fixer invocations"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "content_rate_limit_rejects_total", Help: "LLM calls rejected by rate limiter"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "content_queue_depth", Help: "Jobs waiting in the queue"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "content_jobs_inflight", Help: "Jobs currently executing"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			JobsRetried,
			JobsCancelled,
			BatchesStarted,
			BatchesFinished,
			GateRevisions,
			RateLimitRejects,
			QueueDepthGauge,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
