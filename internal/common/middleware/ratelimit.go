package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the distributed rate limiter
type RateLimitConfig struct {
	// Default rate limit (requests per window)
	Requests int
	// Default window duration
	Window time.Duration
	// Write operations (POST/PUT/PATCH/DELETE) get a stricter limit
	WriteRequests int
	// Write window duration
	WriteWindow time.Duration
}

// skipPaths are paths exempt from rate limiting
var skipPaths = []string{
	"/health",
	"/metrics",
	"/ready",
}

// DistributedRateLimit implements Redis-backed distributed rate limiting using a
// sliding window counter. If Redis is unavailable, it fails open (allows the request).
func DistributedRateLimit(redisClient *redis.Client, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// Skip health/metrics/readiness endpoints
		for _, sp := range skipPaths {
			if path == sp {
				c.Next()
				return
			}
		}

		// Determine rate limit tier. Provisioning writes are more expensive
		// than reads, so they get their own budget.
		limit := cfg.Requests
		window := cfg.Window
		scope := "read"
		if isWriteMethod(c.Request.Method) && cfg.WriteRequests > 0 {
			limit = cfg.WriteRequests
			window = cfg.WriteWindow
			scope = "write"
		}

		identifier := c.ClientIP()
		windowEpoch := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, identifier, windowEpoch)

		// If Redis is nil, fail open
		if redisClient == nil {
			rlFailOpenTotal.WithLabelValues(scope).Inc()
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// Fail open: allow request, log warning
			rlFailOpenTotal.WithLabelValues(scope).Inc()
			logger.Warn("Rate limit Redis error, failing open",
				zap.Error(err),
				zap.String("key", key))
			c.Next()
			return
		}

		// Set expiry on first increment
		if count == 1 {
			redisClient.Expire(ctx, key, window+time.Second)
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > int64(limit) {
			retryAfter := int64(window.Seconds()) - (time.Now().Unix() % int64(window.Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			rlHitsTotal.WithLabelValues(scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
				"status":  "429",
				"detail":  "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// isWriteMethod reports whether the HTTP method mutates resources
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
