package execution

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// Compile-time check to ensure SimulatedExecutor implements Executor
var _ Executor = (*SimulatedExecutor)(nil)

// SimulatedExecutor returns synthetic fills at the observed price and
// never talks to the exchange.
type SimulatedExecutor struct {
	logger *zap.Logger
}

func NewSimulatedExecutor(logger *zap.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{logger: logger}
}

func (s *SimulatedExecutor) PlaceMarketOrder(_ context.Context, order Order) (models.FillRecord, error) {
	qty, err := strconv.ParseFloat(order.Quantity, 64)
	if err != nil {
		return models.FillRecord{}, &ExecutionError{Symbol: order.Symbol, Side: order.Side, Err: err}
	}

	fill := models.FillRecord{
		OrderID:          uuid.NewString(),
		Symbol:           order.Symbol,
		Side:             order.Side,
		Price:            order.RefPrice,
		Quantity:         qty,
		TotalBuyQuoteQty: order.RefPrice * qty,
		Timestamp:        time.Now().UnixMicro(),
		Simulated:        true,
	}

	s.logger.Info("SIMULATED fill",
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.Float64("price", fill.Price),
		zap.Float64("qty", fill.Quantity))

	return fill, nil
}
