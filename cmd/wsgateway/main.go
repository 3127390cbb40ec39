package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/gateway"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/hub"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/repository"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
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

	// Broker unavailability must not prevent the gateway from
	// accepting connections: degraded (no live events) mode.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis unavailable at startup, serving without live events", zap.Error(err))
	}

	manager := hub.NewManager(logger)
	source := repository.NewRedisEventSource(rdb, logger)

	ctx, cancel := context.WithCancel(context.Background())
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		source.Run(ctx, manager.HandleBrokerMessage)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		client := gateway.NewClient(conn, manager, cfg.Gateway, logger)
		manager.Register(client)
		client.Start()
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"message":            "WebSocket Server is running",
			"websocket_url":      "ws://localhost" + cfg.App.WSPort + "/ws",
			"active_connections": manager.ActiveConnections(),
			"status":             "healthy",
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		redisStatus := "connected"
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := source.Ping(pingCtx); err != nil {
			redisStatus = "disconnected"
		}
		pingCancel()

		writeJSON(w, map[string]any{
			"status":             "healthy",
			"active_connections": manager.ActiveConnections(),
			"redis_status":       redisStatus,
			"total_connections":  manager.TotalConnections(),
		})
	})

	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"active_connections": manager.ActiveConnections(),
			"subscriptions":      manager.Subscriptions(),
		})
	})

	srv := &http.Server{Addr: cfg.App.WSPort, Handler: mux}

	go func() {
		logger.Info("WebSocket server started", zap.String("port", cfg.App.WSPort))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down WebSocket server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	srv.Shutdown(shutdownCtx)
	shutdownCancel()

	cancel()
	<-listenerDone

	if err := source.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
