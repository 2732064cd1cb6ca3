package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/api"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/config"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/events"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/metrics"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/repository"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/service"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/store"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry(telemetry.Options{
		ServiceName:    "upgrade-checkout",
		JaegerEndpoint: cfg.Jaeger.Endpoint,
		LogLevel:       cfg.Log.Level,
	}); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting Upgrade Checkout")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewEntitlementRepository(db)
	if err := repo.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Success guard: Redis when configured, in-process otherwise
	var kv store.KV = store.NewMemoryKV(nil)
	if cfg.Redis.URL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.URL,
		})
		defer redisClient.Close()
		kv = store.NewRedisKV(redisClient, cfg.Redis.Prefix)
	} else {
		logger.Warn("REDIS_URL not set, success guard is process local")
	}
	guard := store.NewNotificationGuard(kv, cfg.Redis.SuccessTTL)

	// Connect to NATS
	var upgrades interfaces.UpgradePublisher
	if cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		upgrades = events.NewNatsUpgradePublisher(nc, cfg.Nats.Subject)
	}

	// Connect to Kafka
	var stageEvents interfaces.StageEventPublisher
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaWriter := events.NewStageWriter(brokers, cfg.Kafka.Topic)
		defer kafkaWriter.Close()

		dispatcher := events.NewAsyncPublisher(events.NewKafkaPublisher(kafkaWriter), cfg.Kafka.Buffer, logger)
		defer dispatcher.Close()
		stageEvents = dispatcher
	}

	checkoutMetrics := metrics.New("checkout", prometheus.DefaultRegisterer)
	timings := service.Timings{
		ProcessingDuration: cfg.Checkout.ProcessingDuration(),
		MessageInterval:    cfg.Checkout.MessageInterval(),
		SuccessDisplay:     cfg.Checkout.SuccessDisplay(),
		CloseResetDelay:    cfg.Checkout.CloseResetDelay,
	}

	entitlements := service.NewEntitlementService(repo, upgrades, logger)
	registry := service.NewRegistry(entitlements, func(host interfaces.CheckoutHost) *service.Orchestrator {
		opts := []service.Option{
			service.WithLogger(logger),
			service.WithTimings(timings),
			service.WithSuccessGuard(guard),
			service.WithMetrics(checkoutMetrics),
		}
		if stageEvents != nil {
			opts = append(opts, service.WithPublisher(stageEvents))
		}
		return service.NewOrchestrator(host, opts...)
	}, logger)

	pruneCtx, stopPruning := context.WithCancel(context.Background())
	defer stopPruning()
	go registry.RunPruner(pruneCtx, clock.New(), cfg.Checkout.PruneInterval)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.NewRouter(registry, entitlements),
	}

	// Setup gRPC health server
	grpcServer, healthServer := api.NewGRPCServer()
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		logger.Fatal("Failed to listen for gRPC", zap.Error(err))
	}

	// Start servers in goroutines
	go func() {
		logger.Info("Upgrade Checkout starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("gRPC health starting", zap.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	healthServer.SetServingStatus(api.HealthServiceName, healthpb.HealthCheckResponse_SERVING)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	stopPruning()
	registry.Shutdown()

	logger.Info("Server exited")
}
