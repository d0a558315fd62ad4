package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)

	gs := New(Config{
		Server:          &http.Server{Addr: ":8003"},
		Logger:          logger,
		Shutdownables:   nil,
		ShutdownTimeout: 10 * time.Second,
	})

	assert.NotNil(t, gs)
}

func TestShutdownFunc(t *testing.T) {
	called := false
	fn := NewShutdownFunc("test", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "test", fn.Name())

	err := fn.Shutdown(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
}

func TestShutdownFunc_WithError(t *testing.T) {
	fn := NewShutdownFunc("failing", func(ctx context.Context) error {
		return assert.AnError
	})

	err := fn.Shutdown(context.Background())
	assert.Equal(t, assert.AnError, err)
}

func TestGracefulShutdown_MultipleComponents(t *testing.T) {
	logger := zaptest.NewLogger(t)

	calls := make(chan string, 3)
	component := func(name string) Shutdownable {
		return NewShutdownFunc(name, func(ctx context.Context) error {
			calls <- name
			return nil
		})
	}

	gs := New(Config{
		Server: &http.Server{Addr: ":8003"},
		Logger: logger,
		Shutdownables: []Shutdownable{
			component("component1"),
			component("component2"),
			component("component3"),
		},
		ShutdownTimeout: 5 * time.Second,
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()

	// Give time for Start() to begin listening
	time.Sleep(10 * time.Millisecond)

	gs.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		seen[<-calls] = true
	}
	assert.True(t, seen["component1"])
	assert.True(t, seen["component2"])
	assert.True(t, seen["component3"])
}

func TestGracefulShutdown_ComponentError(t *testing.T) {
	logger := zaptest.NewLogger(t)

	errorComponent := NewShutdownFunc("error", func(ctx context.Context) error {
		return assert.AnError
	})
	okComponent := NewShutdownFunc("ok", func(ctx context.Context) error {
		return nil
	})

	gs := New(Config{
		Server:          &http.Server{Addr: ":8003"},
		Logger:          logger,
		Shutdownables:   []Shutdownable{errorComponent, okComponent},
		ShutdownTimeout: 1 * time.Second,
	})

	// Should not panic even when a component errors
	gs.Shutdown()
	time.Sleep(100 * time.Millisecond)
}

func TestAddShutdownFunc(t *testing.T) {
	logger := zaptest.NewLogger(t)

	calls := make(chan string, 1)
	gs := New(Config{
		Server:          &http.Server{Addr: ":8003"},
		Logger:          logger,
		ShutdownTimeout: 5 * time.Second,
	})
	gs.AddShutdownFunc("late", func(ctx context.Context) error {
		calls <- "late"
		return nil
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	gs.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}

	assert.Equal(t, "late", <-calls)
}

// mockCloser is a mock implementation for testing
type mockCloser struct {
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

func TestHelperFunctions(t *testing.T) {
	t.Run("CloseDB", func(t *testing.T) {
		db := &mockCloser{}
		s := CloseDB(db)
		assert.Equal(t, "database", s.Name())
		s.Shutdown(context.Background())
		assert.True(t, db.closed)
	})

	t.Run("CloseRedis", func(t *testing.T) {
		redis := &mockCloser{}
		s := CloseRedis(redis)
		assert.Equal(t, "redis", s.Name())
		s.Shutdown(context.Background())
		assert.True(t, redis.closed)
	})

	t.Run("CloseTracer", func(t *testing.T) {
		called := false
		fn := func(ctx context.Context) error {
			called = true
			return nil
		}
		s := CloseTracer(fn)
		assert.Equal(t, "tracer", s.Name())
		s.Shutdown(context.Background())
		assert.True(t, called)
	})
}

func TestShutdownableInterface(t *testing.T) {
	var _ Shutdownable = &ShutdownFunc{}
}
