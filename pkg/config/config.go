package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the bot services
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type AppConfig struct {
	Port   string `mapstructure:"port"`
	WSPort string `mapstructure:"ws_port"`
	Env    string `mapstructure:"env"` // e.g., "local", "prod"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type BinanceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	// Simulation skips the exchange entirely and returns synthetic fills
	Simulation bool `mapstructure:"simulation"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type WatcherConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PriceBackoff      time.Duration `mapstructure:"price_backoff"`
	NumWorkers        int           `mapstructure:"num_workers"`
}

type GatewayConfig struct {
	// IdleTimeout is how long a connection may stay silent before the
	// server sends a keepalive ping (never a disconnect).
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	WriteWait   time.Duration `mapstructure:"write_wait"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment first (if present)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8000")
	v.SetDefault("app.ws_port", ":8001")
	v.SetDefault("app.env", "local")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "grid_fills")
	v.SetDefault("kafka.group_id", "grid-archiver-group")

	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.api_secret", "")
	v.SetDefault("binance.simulation", true)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	v.SetDefault("watcher.reconcile_interval", 15*time.Second)
	v.SetDefault("watcher.poll_interval", 10*time.Second)
	v.SetDefault("watcher.price_backoff", 5*time.Second)
	v.SetDefault("watcher.num_workers", 4)

	v.SetDefault("gateway.idle_timeout", 30*time.Second)
	v.SetDefault("gateway.write_wait", 5*time.Second)

	v.SetDefault("logger.level", "info")

	// Map dot-notation keys to underscored env vars (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.ws_port", "app.env")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "binance.base_url", "binance.api_key", "binance.api_secret", "binance.simulation")
	bindEnv(v, "telegram.bot_token", "telegram.chat_id")
	bindEnv(v, "watcher.reconcile_interval", "watcher.poll_interval", "watcher.price_backoff", "watcher.num_workers")
	bindEnv(v, "gateway.idle_timeout", "gateway.write_wait")
	bindEnv(v, "logger.level")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Watcher.PollInterval <= 0 || cfg.Watcher.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("watcher intervals must be positive")
	}
	if cfg.Gateway.IdleTimeout <= 0 || cfg.Gateway.WriteWait <= 0 {
		return nil, fmt.Errorf("gateway timeouts must be positive")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
