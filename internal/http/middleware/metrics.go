// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic plus a
// domain counter for notifications flowing through the storage chain.
// Labels are chosen to keep cardinality bounded:
//
//   - method: HTTP method verb
//   - path:   the registered Gin route (falls back to the raw URL path when
//     no route matched)
//   - status: numeric status code as a string
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// messagesAdded counts notifications accepted by the add endpoint,
	// labeled with the severity variant so persistent/sticky/transient
	// volumes can be charted independently.
	messagesAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_added_total",
			Help: "Total number of notifications accepted, by level variant.",
		},
		[]string{"variant"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, messagesAdded)
}

// Metrics instruments every request with the collectors above.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()

		c.Next()

		httpInflight.Dec()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(c.Request.Method, path, status).Inc()
		httpLat.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// CountMessageAdded records one accepted notification for the given level
// variant ("persistent", "sticky", or "transient").
func CountMessageAdded(variant string) {
	messagesAdded.WithLabelValues(variant).Inc()
}
