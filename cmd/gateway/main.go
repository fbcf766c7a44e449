package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/open-collab/gateway/internal/v1/auth"
	"github.com/open-collab/gateway/internal/v1/bus"
	"github.com/open-collab/gateway/internal/v1/config"
	"github.com/open-collab/gateway/internal/v1/gateway"
	"github.com/open-collab/gateway/internal/v1/health"
	"github.com/open-collab/gateway/internal/v1/logging"
	"github.com/open-collab/gateway/internal/v1/metricsink"
	"github.com/open-collab/gateway/internal/v1/middleware"
	"github.com/open-collab/gateway/internal/v1/orderer"
	"github.com/open-collab/gateway/internal/v1/ratelimit"
	"github.com/open-collab/gateway/internal/v1/registry"
	"github.com/open-collab/gateway/internal/v1/tenant"
	"github.com/open-collab/gateway/internal/v1/throttle"
	"github.com/open-collab/gateway/internal/v1/tracing"
	"github.com/open-collab/gateway/internal/v1/wstransport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	logger := logging.GetLogger()
	defer func() { _ = logger.Sync() }()

	if collectorAddr := os.Getenv("OTEL_COLLECTOR_ADDR"); collectorAddr != "" {
		tp, err := tracing.InitTracer(context.Background(), "gateway", collectorAddr)
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	tokens := &auth.TokenLib{Validator: buildTokenValidator(cfg, logger)}

	var busService *bus.Service
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		redisClient = busService.Client()
		defer func() { _ = busService.Close() }()
	}

	clientRegistry := buildRegistry(redisClient, logger)

	ordererManager, err := orderer.NewManager(cfg.OrdererAddr, nil)
	if err != nil {
		logger.Fatal("failed to dial orderer", zap.Error(err))
	}
	defer func() { _ = ordererManager.Close() }()

	tenantClient := tenant.NewClient(cfg.TenantManagerAddr)
	metricSink := metricsink.New()

	connectGuard := buildThrottleGuard(redisClient, cfg.ConnectThrottleRate, "connect", logger)
	submitOpGuard := buildThrottleGuard(redisClient, cfg.SubmitOpThrottleRate, "submit_op", logger)

	gwCfg := gateway.DefaultConfig()
	gwCfg.MaxNumberOfClientsPerDocument = cfg.MaxNumberOfClientsPerDocument
	gwCfg.MaxTokenLifetime = time.Duration(cfg.MaxTokenLifetimeSeconds) * time.Second
	gwCfg.IsTokenExpiryEnabled = cfg.IsTokenExpiryEnabled

	// Transport is wired in after construction: the Hub needs a *Gateway
	// to dispatch into, and the Gateway needs a Transport to broadcast
	// through.
	gw := gateway.New(gwCfg, tokens, tenantClient, clientRegistry, ordererManager, metricSink, nil, connectGuard, submitOpGuard)

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	hub := wstransport.NewHub(gw, busService, allowedOrigins)
	gw.Transport = hub
	defer hub.Close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("gateway"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/ws", hub.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(busService)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("gateway exited")
}

func buildTokenValidator(cfg *config.Config, logger *zap.Logger) auth.TokenValidator {
	if cfg.SkipAuth {
		logger.Warn("authentication disabled, every token is accepted as-is")
		return &auth.MockValidator{}
	}

	validator, err := auth.NewValidator(context.Background(), cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		logger.Fatal("failed to initialize token validator", zap.Error(err))
	}
	return validator
}

func buildRegistry(redisClient *redis.Client, logger *zap.Logger) gateway.ClientRegistry {
	if redisClient == nil {
		logger.Warn("client registry running in-memory only; clients are not visible across replicas")
		return registry.NewMemoryStore()
	}
	return registry.NewStore(redisClient)
}

func buildThrottleGuard(redisClient *redis.Client, rate, label string, logger *zap.Logger) *throttle.Guard {
	store, err := ratelimit.NewStore(redisClient)
	if err != nil {
		logger.Fatal("failed to build rate limiter store", zap.String("throttle", label), zap.Error(err))
	}

	limiter, err := ratelimit.NewLimiter(store, rate)
	if err != nil {
		logger.Fatal("failed to build rate limiter", zap.String("throttle", label), zap.Error(err))
	}

	return throttle.NewGuard(limiter, func(ctx context.Context, key string, err error) {
		logging.Warn(ctx, "rate limiter backend fault, failing open", zap.String("throttle", label), zap.String("key", key), zap.Error(err))
	})
}
