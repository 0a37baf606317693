package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionTypes    = []string{"quiz", "fill", "plaintext", "file-upload"}
	submissionOutcomes = []string{"created", "updated", "rejected", "invalid", "conflict", "error"}
	cacheResults       = []string{"hit", "miss"}
)

// MetricsHandler serves the scrape endpoint. Submission and cache series are created up
// front so dashboards see zeros before the first request instead of missing series.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	primeSeries()

	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}

func primeSeries() {
	for _, kind := range submissionTypes {
		submissionLatencySeconds.WithLabelValues(kind)
		for _, outcome := range submissionOutcomes {
			submissionAttemptsTotal.WithLabelValues(kind, outcome)
		}
	}
	for _, result := range cacheResults {
		progressCacheRequests.WithLabelValues(result)
	}
}
