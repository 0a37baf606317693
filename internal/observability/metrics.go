package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	submissionAttemptsTotal  *prometheus.CounterVec
	submissionLatencySeconds *prometheus.HistogramVec
	submissionConflictsTotal prometheus.Counter
	progressCacheRequests    *prometheus.CounterVec
	chapterCompletionsTotal  prometheus.Counter
	uploadRejectionsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_attempts_total",
			Help: "Submission attempts processed, by assignment type and outcome.",
		}, []string{"type", "outcome"})

		submissionLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "submission_latency_seconds",
			Help:    "End-to-end latency of submission processing.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"})

		submissionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submission_conflicts_total",
			Help: "Optimistic concurrency conflicts observed while committing submissions.",
		})

		progressCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_cache_requests_total",
			Help: "Progress view cache lookups, by result.",
		}, []string{"result"})

		chapterCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chapter_completions_total",
			Help: "Chapter slots that transitioned to completed.",
		})

		uploadRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejections_total",
			Help: "Submission uploads rejected, by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionAttemptsTotal,
			submissionLatencySeconds,
			submissionConflictsTotal,
			progressCacheRequests,
			chapterCompletionsTotal,
			uploadRejectionsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// SubmissionAttempts counts processed attempts.
func SubmissionAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionAttemptsTotal
}

// SubmissionLatency observes submission processing time.
func SubmissionLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return submissionLatencySeconds
}

// SubmissionConflicts counts version conflicts, including retried ones.
func SubmissionConflicts() prometheus.Counter {
	RegisterMetrics()
	return submissionConflictsTotal
}

// ProgressCacheRequests counts cache hits and misses of the progress view.
func ProgressCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return progressCacheRequests
}

// ChapterCompletions counts chapters reaching completed.
func ChapterCompletions() prometheus.Counter {
	RegisterMetrics()
	return chapterCompletionsTotal
}

// UploadRejected counts uploads refused before or during storage.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectionsTotal
}
