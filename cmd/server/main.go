package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stickerai/credits-service/config"
	"github.com/stickerai/credits-service/internal/api/rest"
	"github.com/stickerai/credits-service/internal/kafka"
	"github.com/stickerai/credits-service/internal/kafka/producer"
	"github.com/stickerai/credits-service/internal/metrics"
	"github.com/stickerai/credits-service/internal/receipts"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/internal/repository/postgres"
	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New(logger.INFO)
		bootstrap.Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	creditMetrics := metrics.NewCreditMetrics(promRegistry, log)
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log)
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Хранилища: postgres либо встроенные in-memory
	var (
		accountStore      repository.AccountStore
		transactionStore  repository.TransactionStore
		purchaseStore     repository.PurchaseStore
		subscriptionStore repository.SubscriptionStore
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory storage, data will not survive a restart")
		accountStore = repository.NewInMemoryAccountRepository(log)
		transactionStore = repository.NewInMemoryTransactionRepository(log)
		purchaseStore = repository.NewInMemoryPurchaseRepository(log)
		subscriptionStore = repository.NewInMemorySubscriptionRepository(log)
	default:
		dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer dbPool.Close()

		if err := postgres.Migrate(ctx, dbPool); err != nil {
			log.Fatal("Failed to apply database schema: %v", err)
		}

		accountStore = postgres.NewPostgresAccountRepository(dbPool, log)
		transactionStore = postgres.NewPostgresTransactionRepository(dbPool, log)
		purchaseStore = postgres.NewPostgresPurchaseRepository(dbPool, log)
		subscriptionStore = postgres.NewPostgresSubscriptionRepository(dbPool, log)
	}

	// Redis кэш живых подписок
	if cfg.Redis.Enabled {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		subscriptionStore = repository.NewCachedSubscriptionRepository(subscriptionStore, redisCache, log)
	}

	// Kafka продюсер событий
	var creditProducer producer.CreditProducer
	if cfg.Kafka.Enabled {
		kafkaConfig := kafka.NewConfig(cfg.Kafka.Brokers)
		if err := kafka.EnsureTopics(kafkaConfig, log); err != nil {
			log.Fatal("Failed to prepare Kafka topics: %v", err)
		}

		saramaProducer, err := sarama.NewSyncProducer(kafkaConfig.Brokers, kafka.NewSaramaConfig(kafkaConfig, log))
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
		creditProducer = producer.NewKafkaCreditProducer(saramaProducer, log)
		defer creditProducer.Close()
	} else {
		log.Warn("Kafka is disabled, credit events will not be published")
	}

	// Сервисы
	accountService := service.NewAccountService(accountStore, log)
	ledgerService := service.NewLedgerService(accountStore, transactionStore, creditProducer, creditMetrics, log)
	purchaseService := service.NewPurchaseService(purchaseStore, ledgerService, receipts.NewRegistry(log), creditProducer, creditMetrics, log)
	subscriptionService := service.NewSubscriptionService(subscriptionStore, accountStore, ledgerService, creditProducer, creditMetrics, log)

	// Воркер истечения подписок
	go runExpirySweep(ctx, subscriptionService, cfg.Sweep.Interval, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := rest.SetupRouter(rest.Services{
		Accounts:      accountService,
		Ledger:        ledgerService,
		Purchases:     purchaseService,
		Subscriptions: subscriptionService,
	}, promRegistry, log)

	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}

// runExpirySweep периодически истекает подписки с прошедшей датой окончания
func runExpirySweep(ctx context.Context, subscriptions service.SubscriptionService, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	log.Info("Subscription expiry sweep started with interval %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := subscriptions.ProcessExpired(ctx); err != nil {
				log.Error("Subscription expiry sweep failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Subscription expiry sweep stopped")
			return
		}
	}
}
