package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_service_http_requests_total",
			Help: "Total HTTP requests processed, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_service_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AttemptsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_service_attempts_started_total",
			Help: "Total exam attempts started.",
		},
	)

	AttemptsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_service_attempts_submitted_total",
			Help: "Total exam attempts submitted.",
		},
	)

	IntegrityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_service_integrity_events_total",
			Help: "Total integrity events recorded, by event type.",
		},
		[]string{"event_type"},
	)
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}
