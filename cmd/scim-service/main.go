// Package main is the entry point for the SCIM gateway service.
// It serves the SCIM v2.0 provisioning API for Users and Groups.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/scimgate/scimgate/internal/api"
	"github.com/scimgate/scimgate/internal/common/config"
	"github.com/scimgate/scimgate/internal/common/database"
	"github.com/scimgate/scimgate/internal/common/logger"
	"github.com/scimgate/scimgate/internal/common/middleware"
	"github.com/scimgate/scimgate/internal/common/tlsutil"
	"github.com/scimgate/scimgate/internal/common/tracing"
	"github.com/scimgate/scimgate/internal/directory"
	"github.com/scimgate/scimgate/internal/health"
	"github.com/scimgate/scimgate/internal/metrics"
	"github.com/scimgate/scimgate/internal/scim"
	"github.com/scimgate/scimgate/internal/server"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	log := logger.New()
	defer log.Sync()

	log.Info("Starting SCIM Service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
	)

	cfg, err := config.Load("scim-service")
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	cfg.LogSecurityWarnings(log)

	// Initialize tracing
	tracingCfg := tracing.ConfigFromEnv("scim-service", cfg.Environment)
	shutdownTracer, err := tracing.Init(context.Background(), tracingCfg, log)
	if err != nil {
		log.Warn("Failed to initialize tracing", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PostgresTLSConfig{
		SSLMode:     cfg.DatabaseSSLMode,
		SSLRootCert: cfg.DatabaseSSLRootCert,
		SSLCert:     cfg.DatabaseSSLCert,
		SSLKey:      cfg.DatabaseSSLKey,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := directory.InitializeSchema(context.Background(), db.Pool); err != nil {
		log.Fatal("Failed to initialize directory schema", zap.Error(err))
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("scim-service"))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.RequestID())
	router.Use(logger.GinMiddleware(log))
	if cfg.EnableRateLimit {
		router.Use(middleware.DistributedRateLimit(redis.Client, middleware.RateLimitConfig{
			Requests:      cfg.RateLimitRequests,
			Window:        time.Duration(cfg.RateLimitWindow) * time.Second,
			WriteRequests: cfg.RateLimitWriteRequests,
			WriteWindow:   time.Duration(cfg.RateLimitWriteWindow) * time.Second,
		}, log))
	}
	router.Use(metrics.Middleware("scim-service"))

	// Metrics endpoint
	router.GET("/metrics", metrics.Handler())

	// API versioning middleware
	router.Use(api.StandardVersionMiddleware())

	store := directory.NewStore(db.Pool)
	scimService := scim.NewService(store, cfg, log)
	scimService.RegisterRoutes(router)

	// Health checks cover both backing stores
	healthService := health.NewHealthService(log)
	healthService.SetVersion(Version)
	healthService.RegisterCheck(health.NewPostgresChecker(db))
	healthService.RegisterCheck(health.NewRedisChecker(redis))
	healthService.RegisterStandardRoutes(router, "")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownables := []server.Shutdownable{
		server.CloseDB(db),
		server.CloseRedis(redis),
	}
	if shutdownTracer != nil {
		shutdownables = append(shutdownables, server.CloseTracer(shutdownTracer))
	}

	graceful := server.New(server.Config{
		Server:          httpServer,
		Logger:          log,
		Shutdownables:   shutdownables,
		ShutdownTimeout: 30 * time.Second,
	})

	go func() {
		log.Info("Server listening", zap.Int("port", cfg.Port))
		if err := tlsutil.ListenAndServe(httpServer, cfg.TLS, log); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	graceful.Start()

	log.Info("Server exited")
}
