package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// Order is a market order request. RefPrice is the price the watcher
// observed when the level triggered; the simulated executor fills at
// it, the live executor ignores it.
type Order struct {
	Symbol   string
	Side     string // "BUY" or "SELL"
	Quantity string
	RefPrice float64
}

// ExecutionError wraps an order placement failure.
type ExecutionError struct {
	Symbol string
	Side   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s %s: %v", e.Side, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor places market orders.
type Executor interface {
	PlaceMarketOrder(ctx context.Context, order Order) (models.FillRecord, error)
}

// NewExecutor picks the simulated executor unless simulation is
// switched off and credentials are present.
func NewExecutor(cfg config.BinanceConfig, logger *zap.Logger) Executor {
	if cfg.Simulation || cfg.APIKey == "" {
		logger.Info("Order execution in simulation mode")
		return NewSimulatedExecutor(logger)
	}
	return NewBinanceExecutor(cfg, logger)
}
