package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conciliation",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conciliation",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conciliation",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Reconciliation runs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conciliation",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"kind"},
	)

	matchedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conciliation",
			Subsystem: "matching",
			Name:      "matched_sales_total",
			Help:      "Sales reconciled, by match method.",
		},
		[]string{"method"},
	)

	divergencesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conciliation",
			Subsystem: "divergences",
			Name:      "created_total",
			Help:      "Divergences flagged, by kind.",
		},
		[]string{"kind"},
	)

	divergencesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conciliation",
			Subsystem: "divergences",
			Name:      "resolved_total",
			Help:      "Divergences resolved, by resolution kind.",
		},
		[]string{"resolution"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		runs,
		runDuration,
		matchedRecords,
		divergencesCreated,
		divergencesResolved,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latencies by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			return
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordRun records one reconciliation run.
func RecordRun(kind string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	runs.WithLabelValues(kind, outcome).Inc()
	runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordMatches(method string, sales int) {
	if sales <= 0 {
		return
	}
	matchedRecords.WithLabelValues(method).Add(float64(sales))
}

func RecordDivergence(kind string) {
	divergencesCreated.WithLabelValues(kind).Inc()
}

func RecordResolution(resolution string) {
	divergencesResolved.WithLabelValues(resolution).Inc()
}
