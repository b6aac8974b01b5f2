package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/adapters"
	"github.com/satriahrh/lexlink/adapters/linking"
	"github.com/satriahrh/lexlink/adapters/mongo"
	"github.com/satriahrh/lexlink/adapters/postgres"
	"github.com/satriahrh/lexlink/adapters/redis"
	"github.com/satriahrh/lexlink/domain/repositories"
	"github.com/satriahrh/lexlink/internal/api"
	"github.com/satriahrh/lexlink/internal/auth"
	"github.com/satriahrh/lexlink/internal/config"
	"github.com/satriahrh/lexlink/internal/logger"
	"github.com/satriahrh/lexlink/internal/monitoring"
	"github.com/satriahrh/lexlink/internal/notify"
	"github.com/satriahrh/lexlink/internal/pairing"
	"github.com/satriahrh/lexlink/internal/registry"
	"github.com/satriahrh/lexlink/internal/transport"
	"github.com/satriahrh/lexlink/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "lexlink-whatsapp")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	monitoring.InitMetrics(log)

	ctx := context.Background()
	var closers []func()

	// Storage
	var (
		devices repositories.DeviceRepository
		plans   repositories.TenantPlanRepository
	)
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(closeCtx)
		})
		devices = mongo.NewDeviceRepository(client.Database(), log)
		plans = adapters.NewMemoryTenantPlanRepository()

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		closers = append(closers, pool.Close)
		devices = postgres.NewDeviceRepository(pool)
		plans = postgres.NewTenantPlanRepository(pool)

	default:
		devices = adapters.NewMemoryDeviceRepository()
		plans = adapters.NewMemoryTenantPlanRepository()
	}

	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		closers = append(closers, func() { rdb.Close() })
		plans = redis.NewPlanCache(plans, rdb, cfg.PlanCacheTTL, log)
	}

	log.Info("Storage ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Bool("planCache", cfg.RedisAddr != ""))

	// Linking backend and transport
	backend, err := linking.NewClient(linking.Config{
		BaseURL: cfg.WhatsAppAPIURL,
		APIKey:  cfg.WhatsAppAPIKey,
	}, log)
	if err != nil {
		log.Fatal("Failed to create linking client", zap.Error(err))
	}
	adapter := transport.NewAdapter(transport.Config{
		PushURL:           cfg.WhatsAppPushURL,
		PollInterval:      cfg.PollInterval,
		ErrorPollInterval: cfg.PollErrorInterval,
		MaxPollFailures:   cfg.PollMaxFailures,
	}, backend, log)

	// Services
	reg := registry.New(devices, log)
	capacity := pairing.NewCapacityGuard(reg, plans, cfg.DeviceCapDefault)

	hub := websocket.NewHub(log)
	sink := notify.NewSink(notify.Config{
		QueueSize: cfg.NotificationQueue,
		TTL:       cfg.NotificationTTL,
	}, hub, log)

	manager := pairing.NewManager(adapter, backend, reg, capacity, sink, hub, pairing.Config{
		Timeout:      cfg.PairingTimeout,
		StaleAfter:   cfg.PairingStaleAfter,
		PollInterval: cfg.PollInterval,
		Retention:    cfg.FailedSessionRetention,
	}, log)

	hub.Bind(api.NewHubCommands(manager, sink))
	go hub.Run()

	janitor := pairing.NewJanitor(manager, time.Minute, log)
	janitor.Start()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Manager:  manager,
		Registry: reg,
		Capacity: capacity,
		Sink:     sink,
		Hub:      hub,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTokenTTL),
		Logger:   log,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	janitor.Stop()
	manager.Close()
	sink.Close()
	hub.Shutdown()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	log.Info("Server exited")
}
