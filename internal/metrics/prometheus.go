// Package metrics provides Prometheus metrics collection for scimgate
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scimgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "scimgate",
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
		[]string{"service"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scimgate",
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"service", "method", "path"},
	)
)

// Provisioning metrics
var (
	provisioningOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "provisioning_operations_total",
			Help:      "Total number of provisioning operations by resource type",
		},
		[]string{"resource", "operation", "outcome"}, // resource: user, group; operation: create, get, list, replace, patch, delete; outcome: success, failure
	)

	scimErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "scim_errors_total",
			Help:      "Total number of SCIM error responses by scimType",
		},
		[]string{"scim_type", "status"},
	)

	filterQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "filter_queries_total",
			Help:      "Total number of filtered list requests",
		},
		[]string{"resource", "attribute"},
	)

	patchOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "patch_operations_total",
			Help:      "Total number of PATCH sub-operations applied",
		},
		[]string{"resource", "op"},
	)

	// AuthAttemptsTotal is exported for use by the auth middleware
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "auth_attempts_total",
			Help:      "Total number of authentication attempts",
		},
		[]string{"method", "outcome"}, // method: bearer, jwt; outcome: success, failure
	)
)

// Database and cache metrics
var (
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scimgate",
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"service", "operation", "table"}, // operation: select, insert, update, delete
	)

	dbConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "scimgate",
			Name:      "db_connections",
			Help:      "Number of database connections",
		},
		[]string{"service", "state"}, // state: idle, in_use, wait
	)
)

// Middleware returns a Gin middleware that records HTTP metrics.
// serviceName is used as the "service" label on all metrics.
func Middleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		// Skip metrics endpoint itself to avoid recursion
		if path == "/metrics" {
			c.Next()
			return
		}

		httpRequestsInFlight.WithLabelValues(serviceName).Inc()
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		size := float64(c.Writer.Size())

		httpRequestsTotal.WithLabelValues(serviceName, method, path, status).Inc()
		httpRequestDuration.WithLabelValues(serviceName, method, path).Observe(duration)
		httpResponseSize.WithLabelValues(serviceName, method, path).Observe(size)
		httpRequestsInFlight.WithLabelValues(serviceName).Dec()
	}
}

// Handler returns a gin.HandlerFunc that serves Prometheus metrics.
// Register this on the "/metrics" route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordProvisioningOperation records a provisioning operation outcome
func RecordProvisioningOperation(resource, operation, outcome string) {
	provisioningOperationsTotal.WithLabelValues(resource, operation, outcome).Inc()
}

// RecordSCIMError records a SCIM error response
func RecordSCIMError(scimType string, status int) {
	scimErrorsTotal.WithLabelValues(scimType, strconv.Itoa(status)).Inc()
}

// RecordFilterQuery records a filtered list request
func RecordFilterQuery(resource, attribute string) {
	filterQueriesTotal.WithLabelValues(resource, attribute).Inc()
}

// RecordPatchOperation records an applied PATCH sub-operation
func RecordPatchOperation(resource, op string) {
	patchOperationsTotal.WithLabelValues(resource, op).Inc()
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(method, outcome string) {
	AuthAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(service, operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(service, operation, table).Observe(duration.Seconds())
}

// SetDBConnections sets the current number of database connections
func SetDBConnections(service, state string, count float64) {
	dbConnectionsGauge.WithLabelValues(service, state).Set(count)
}
