package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/alert"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/execution"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/fills"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/watcher"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/binance"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/events"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	gridStore := store.NewRedisStore(rdb)
	publisher := events.NewPublisher(rdb, logger)
	feed := binance.NewClient(cfg.Binance)
	executor := execution.NewExecutor(cfg.Binance, logger)
	notifier := alert.NewTelegramNotifier(cfg.Telegram, logger)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true, // fills are best-effort, never block an iteration
	}
	recorder := fills.NewRecorder(writer, logger)

	symbolWatcher := watcher.NewSymbolWatcher(
		gridStore, feed, executor, notifier, publisher, recorder,
		watcher.RealClock{}, cfg.Watcher, logger,
	)
	controller := watcher.NewController(gridStore, symbolWatcher.Watch, cfg.Watcher.ReconcileInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := controller.Run(ctx); err != nil {
			logger.Error("Controller stopped with error", zap.Error(err))
		}
	}()

	logger.Info("Grid watcher started",
		zap.Duration("reconcile_interval", cfg.Watcher.ReconcileInterval),
		zap.Duration("poll_interval", cfg.Watcher.PollInterval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, stopping watcher...")
	cancel()
	<-done

	if err := recorder.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	}
	if err := gridStore.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}

	logger.Info("Watcher exited cleanly")
}
