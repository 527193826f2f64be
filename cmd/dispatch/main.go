package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/internal/matching"
	"github.com/vambora/dispatch/internal/presence"
	"github.com/vambora/dispatch/internal/realtime"
	"github.com/vambora/dispatch/internal/rides"
	"github.com/vambora/dispatch/pkg/common"
	"github.com/vambora/dispatch/pkg/config"
	"github.com/vambora/dispatch/pkg/eventbus"
	"github.com/vambora/dispatch/pkg/health"
	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/middleware"
	redisclient "github.com/vambora/dispatch/pkg/redis"
	"github.com/vambora/dispatch/pkg/websocket"
)

const (
	serviceName = "dispatch"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
	)
	if cfg.Dispatch.QuickTestMode {
		logger.Warn("Quick test mode enabled, offers ignore distance and availability")
	}

	// Optional backends. The core dispatches fully in memory; Redis adds
	// chat history and the location mirror, NATS adds lifecycle events.
	var redisClient redisclient.ClientInterface
	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("Redis disabled, chat history and location cache are off")
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled() {
		b, err := eventbus.New(eventbus.Config{URL: cfg.NATS.URL, Name: serviceName})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer b.Close()
		bus = b
	} else {
		logger.Info("NATS disabled, ride lifecycle events are off")
	}

	hub := websocket.NewHub()
	go hub.Run()

	drivers := presence.NewRegistry()
	rideRegistry := rides.NewRegistry()

	selector := matching.NewSelector(drivers, matching.SelectorConfig{
		StaleAfter: cfg.Dispatch.DriverStale,
		QuickTest:  cfg.Dispatch.QuickTestMode,
	})
	matchingSvc := matching.NewService(hub, rideRegistry, selector, bus, matching.Config{
		BatchSize:  cfg.Dispatch.BatchSize,
		MaxRounds:  cfg.Dispatch.MaxRounds,
		OfferTTL:   cfg.Dispatch.OfferTTL,
		RetryDelay: cfg.Dispatch.RetryDelay,
	})

	realtimeSvc := realtime.NewService(hub, drivers, rideRegistry, matchingSvc, redisClient, bus, realtime.Config{
		Linger:         cfg.Dispatch.Linger,
		ChatHistoryTTL: cfg.Redis.ChatHistoryTTL,
		QuickTest:      cfg.Dispatch.QuickTestMode,
	})
	realtimeSvc.RegisterHandlers()

	handler := realtime.NewHandler(realtimeSvc, hub)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.Metrics())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/healthz", common.HealthCheck(serviceName, version))

	healthChecks := make(map[string]func() error)
	if redisClient != nil {
		healthChecks["redis"] = health.RedisChecker(redisClient)
	}
	if bus != nil {
		healthChecks["nats"] = health.BusChecker(bus)
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	deepCfg := health.DefaultDeepCheckerConfig()
	deepCfg.Version = version
	deepChecker := health.NewDeepChecker(deepCfg)
	if redisClient != nil {
		deepChecker.SetRedis(redisClient)
	}
	if bus != nil {
		deepChecker.SetBus(bus)
	}
	router.GET("/health/deep", gin.WrapF(deepChecker.Handler()))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	// No read or write timeouts here; WebSocket connections are expected
	// to live for hours.
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
