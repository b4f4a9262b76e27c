package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	trustRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_trust_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	trustRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_trust_http_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	trustTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_trust_transitions_total",
		Help: "Trust lifecycle transitions by action and outcome.",
	}, []string{"action", "outcome"})
)

// recordTrustTransition counts one lifecycle transition attempt.
func recordTrustTransition(action, outcome string) {
	trustTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		trustRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		trustRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsEndpoint returns the Prometheus scrape handler wrapped for Gin.
func MetricsEndpoint() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
