package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/store/memstore"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type repository interface {
	store.Repository
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg := config.MustLoad()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")
	cfg.Log(logger)

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	repo := openRepository(cfg, logger)
	defer repo.Close()

	checks := map[string]api.Pinger{"database": repo}

	var (
		idempotency service.IdempotencyStore
		locker      worker.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		idempotency = redisClient
		locker = redisClient
		checks["redis"] = redisClient
	}

	// events reach the referral handler through Kafka, or in-process when Kafka is off
	var route broker.MessageHandler
	var sink broker.Sink
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		sink = producer
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		sink = broker.NewLocalSink(func(ctx context.Context, msg kafka.Message) error {
			return route(ctx, msg)
		})
		logger.Info("Kafka disabled, dispatching events in-process")
	}
	publisher := broker.NewEventPublisher(sink)

	cityCharges, err := cfg.Business.CityCharges()
	if err != nil {
		logger.Fatal("Invalid delivery charges", zap.Error(err))
	}

	referralService := service.NewReferralService(repo, publisher, service.ReferralConfig{
		RewardAmount:   cfg.Business.ReferralReward,
		MinPurchase:    cfg.Business.ReferralMinPurchase,
		HoldPeriod:     cfg.Business.ReferralHoldPeriod,
		SweepBatchSize: cfg.Business.HoldSweepBatchSize,
	})
	route = worker.NewReferralEventHandler(referralService).HandleMessage

	orderService := service.NewOrderService(
		repo,
		service.NewInventory(),
		service.NewCouponGuard(),
		service.NewDeliveryCalculator(cfg.Business.DeliveryCharge, cityCharges),
		referralService,
		publisher,
		idempotency,
		cfg.Business.IdempotencyTTL,
	)
	ledgerService := service.NewLedgerService(repo, publisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var referralWorker *worker.ReferralWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		referralWorker = worker.NewReferralWorker(consumer, referralService)
		go func() {
			if err := referralWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Referral worker error", zap.Error(err))
			}
		}()
	}

	sweeper := worker.NewHoldSweeper(referralService, locker, cfg.Business.HoldSweepInterval)
	go func() {
		_ = sweeper.Start(workerCtx)
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, referralService, ledgerService, []byte(cfg.Auth.JWTSecret), checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if referralWorker != nil {
		if err := referralWorker.Stop(); err != nil {
			logger.Warn("Error stopping referral worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func openRepository(cfg *config.Config, logger *zap.Logger) repository {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on exit")
		return memstore.New()
	}

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	logger.Info("Database connected and migrated")
	return db
}
