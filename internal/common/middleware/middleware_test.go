package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		requestID, exists := c.Get("request_id")
		assert.True(t, exists)
		assert.NotEmpty(t, requestID)
		c.String(200, "OK")
	})

	t.Run("Generates request ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Uses provided request ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "custom-request-id")
		router.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "custom-request-id", w.Header().Get("X-Request-ID"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("Development headers", func(t *testing.T) {
		router := gin.New()
		router.Use(SecurityHeaders(false))
		router.GET("/test", func(c *gin.Context) { c.String(200, "OK") })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("Production adds HSTS and CSP", func(t *testing.T) {
		router := gin.New()
		router.Use(SecurityHeaders(true))
		router.GET("/test", func(c *gin.Context) { c.String(200, "OK") })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
		assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	})
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestDistributedRateLimit(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Allows requests within limit", func(t *testing.T) {
		client := newTestRedis(t)
		router := gin.New()
		router.Use(DistributedRateLimit(client, RateLimitConfig{
			Requests: 5,
			Window:   time.Minute,
		}, logger))
		router.GET("/Users", func(c *gin.Context) { c.String(200, "OK") })

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/Users", nil)
			req.RemoteAddr = "192.168.1.1:1234"
			router.ServeHTTP(w, req)
			assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		}
	})

	t.Run("Blocks requests exceeding limit", func(t *testing.T) {
		client := newTestRedis(t)
		router := gin.New()
		router.Use(DistributedRateLimit(client, RateLimitConfig{
			Requests: 3,
			Window:   time.Minute,
		}, logger))
		router.GET("/Users", func(c *gin.Context) { c.String(200, "OK") })

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/Users", nil)
			req.RemoteAddr = "192.168.1.1:1234"
			router.ServeHTTP(w, req)
			assert.Equal(t, 200, w.Code)
		}

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/Users", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		router.ServeHTTP(w, req)

		assert.Equal(t, 429, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "urn:ietf:params:scim:api:messages:2.0:Error")
	})

	t.Run("Writes use their own budget", func(t *testing.T) {
		client := newTestRedis(t)
		router := gin.New()
		router.Use(DistributedRateLimit(client, RateLimitConfig{
			Requests:      100,
			Window:        time.Minute,
			WriteRequests: 1,
			WriteWindow:   time.Minute,
		}, logger))
		router.GET("/Users", func(c *gin.Context) { c.String(200, "OK") })
		router.POST("/Users", func(c *gin.Context) { c.String(201, "OK") })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/Users", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		router.ServeHTTP(w, req)
		assert.Equal(t, 201, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("POST", "/Users", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		router.ServeHTTP(w, req)
		assert.Equal(t, 429, w.Code)

		// Reads are unaffected by the exhausted write budget
		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/Users", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	})

	t.Run("Skips health and metrics endpoints", func(t *testing.T) {
		client := newTestRedis(t)
		router := gin.New()
		router.Use(DistributedRateLimit(client, RateLimitConfig{
			Requests: 1,
			Window:   time.Minute,
		}, logger))
		router.GET("/health", func(c *gin.Context) { c.String(200, "OK") })

		for i := 0; i < 10; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health", nil)
			req.RemoteAddr = "192.168.1.1:1234"
			router.ServeHTTP(w, req)
			assert.Equal(t, 200, w.Code)
		}
	})

	t.Run("Fails open when Redis is down", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		mr.Close()

		router := gin.New()
		router.Use(DistributedRateLimit(client, RateLimitConfig{
			Requests: 1,
			Window:   time.Minute,
		}, logger))
		router.GET("/Users", func(c *gin.Context) { c.String(200, "OK") })

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/Users", nil)
			req.RemoteAddr = "192.168.1.1:1234"
			router.ServeHTTP(w, req)
			assert.Equal(t, 200, w.Code)
		}
	})
}

func TestTimeout(t *testing.T) {
	t.Run("Request completes within timeout", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(100 * time.Millisecond))
		router.GET("/test", func(c *gin.Context) {
			time.Sleep(10 * time.Millisecond)
			c.String(200, "OK")
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code)
	})

	t.Run("Request exceeds timeout", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/test", func(c *gin.Context) {
			select {
			case <-time.After(50 * time.Millisecond):
				c.String(200, "OK")
			case <-c.Request.Context().Done():
				return
			}
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, 504, w.Code)
	})
}
