package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockChecker is a mock implementation of HealthChecker for testing
type mockChecker struct {
	name      string
	status    string
	latencyMS float64
	details   string
	critical  bool
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) ComponentStatus {
	return ComponentStatus{
		Status:    m.status,
		LatencyMS: m.latencyMS,
		Details:   m.details,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func (m *mockChecker) IsCritical() bool {
	return m.critical
}

func TestHealthService_Check(t *testing.T) {
	tests := []struct {
		name           string
		checkers       []HealthChecker
		expectedStatus string
	}{
		{
			name: "all components up",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "up", critical: true},
				&mockChecker{name: "redis", status: "up", critical: false},
			},
			expectedStatus: "up",
		},
		{
			name: "one component degraded",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "up", critical: true},
				&mockChecker{name: "redis", status: "degraded", critical: false},
			},
			expectedStatus: "degraded",
		},
		{
			name: "one component down",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "up", critical: true},
				&mockChecker{name: "redis", status: "down", critical: false},
			},
			expectedStatus: "down",
		},
		{
			name: "down takes precedence over degraded",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "down", critical: true},
				&mockChecker{name: "redis", status: "degraded", critical: false},
			},
			expectedStatus: "down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			hs := NewHealthService(logger)

			for _, checker := range tt.checkers {
				hs.RegisterCheck(checker)
			}

			result := hs.Check(context.Background())

			if result.Status != tt.expectedStatus {
				t.Errorf("expected status %q, got %q", tt.expectedStatus, result.Status)
			}

			if len(result.Components) != len(tt.checkers) {
				t.Errorf("expected %d components, got %d", len(tt.checkers), len(result.Components))
			}
		})
	}
}

func TestHealthService_ReadyHandler(t *testing.T) {
	tests := []struct {
		name         string
		checkers     []HealthChecker
		expectedCode int
	}{
		{
			name: "all critical components up - ready",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "up", critical: true},
				&mockChecker{name: "redis", status: "up", critical: false},
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "critical component down - not ready",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "down", critical: true},
			},
			expectedCode: http.StatusServiceUnavailable,
		},
		{
			name: "critical component degraded - ready (degraded is not down)",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "degraded", critical: true},
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "non-critical down - ready",
			checkers: []HealthChecker{
				&mockChecker{name: "database", status: "up", critical: true},
				&mockChecker{name: "redis", status: "down", critical: false},
			},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			hs := NewHealthService(logger)
			for _, checker := range tt.checkers {
				hs.RegisterCheck(checker)
			}

			router := gin.New()
			router.GET("/health/ready", hs.ReadyHandler())

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health/ready", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, w.Code)
			}
		})
	}
}

func TestHealthService_Handler_DownReturns503(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hs := NewHealthService(logger)
	hs.RegisterCheck(&mockChecker{name: "database", status: "down", critical: true})

	router := gin.New()
	router.GET("/health", hs.Handler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestHealthService_SetVersion(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hs := NewHealthService(logger)

	hs.SetVersion("1.2.3")
	result := hs.Check(context.Background())

	if result.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", result.Version)
	}
}

func TestHealthService_LiveHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hs := NewHealthService(logger)

	router := gin.New()
	router.GET("/health/live", hs.LiveHandler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/live", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHealthService_ConcurrentCheck(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hs := NewHealthService(logger)

	hs.RegisterCheck(&mockChecker{name: "slow", status: "up", critical: true})
	hs.RegisterCheck(&mockChecker{name: "fast", status: "up", critical: true})

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			hs.Check(context.Background())
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestFuncChecker(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hs := NewHealthService(logger)

	callCount := 0
	funcChecker := NewFuncChecker("func", func(ctx context.Context) ComponentStatus {
		callCount++
		return ComponentStatus{
			Status:    "up",
			LatencyMS: 10,
			Details:   "func check",
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}, true)
	hs.RegisterCheck(funcChecker)

	result := hs.Check(context.Background())

	if callCount != 1 {
		t.Errorf("expected func checker to be called once, was called %d times", callCount)
	}

	comp, ok := result.Components["func"]
	if !ok {
		t.Fatal("func checker not found in components")
	}

	if comp.Status != "up" {
		t.Errorf("expected status up, got %s", comp.Status)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{time.Second, "1s"},
		{30 * time.Second, "30s"},
		{time.Minute, "1m 0s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h 0m 0s"},
		{2*time.Hour + 30*time.Minute, "2h 30m 0s"},
		{24*time.Hour + 2*time.Hour, "1d 2h 0m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.input.String(), func(t *testing.T) {
			result := formatDuration(tt.input)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
