package watcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/execution"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/store"
)

// SymbolWatcher runs the per-symbol polling loop: fetch price, find
// untriggered levels the price has crossed, persist the mutated grid
// in a single write, execute orders and publish events.
type SymbolWatcher struct {
	store     store.GridStore
	feed      PriceFeed
	exec      execution.Executor
	notifier  Notifier
	publisher EventPublisher
	recorder  FillRecorder
	clock     Clock
	logger    *zap.Logger

	pollInterval time.Duration
	priceBackoff time.Duration
}

func NewSymbolWatcher(
	gridStore store.GridStore,
	feed PriceFeed,
	exec execution.Executor,
	notifier Notifier,
	publisher EventPublisher,
	recorder FillRecorder,
	clock Clock,
	cfg config.WatcherConfig,
	logger *zap.Logger,
) *SymbolWatcher {
	return &SymbolWatcher{
		store:        gridStore,
		feed:         feed,
		exec:         exec,
		notifier:     notifier,
		publisher:    publisher,
		recorder:     recorder,
		clock:        clock,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		priceBackoff: cfg.PriceBackoff,
	}
}

// Watch loops until ctx is cancelled. Iteration failures are logged
// and retried on the next tick; only cancellation ends the task.
func (w *SymbolWatcher) Watch(ctx context.Context, symbol string) {
	symbol = strings.ToUpper(symbol)
	w.logger.Info("Watching symbol", zap.String("symbol", symbol))

	for {
		delay := w.iterate(ctx, symbol)

		select {
		case <-ctx.Done():
			w.logger.Info("Watch cancelled", zap.String("symbol", symbol))
			return
		case <-time.After(delay):
		}
	}
}

// iterate runs one pass and returns how long to sleep before the next.
func (w *SymbolWatcher) iterate(ctx context.Context, symbol string) time.Duration {
	priceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	price, err := w.feed.CurrentPrice(priceCtx, symbol)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("Price fetch failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return w.priceBackoff
	}

	// The rest of the iteration runs on a detached context so that an
	// in-flight trigger (order, store write) completes even when the
	// task is being cancelled.
	opCtx, cancelOps := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelOps()

	levels, err := w.store.GetLiveGrid(opCtx, symbol)
	if err != nil {
		w.logger.Error("Live grid read failed", zap.String("symbol", symbol), zap.Error(err))
		return w.pollInterval
	}
	if len(levels) == 0 {
		return w.pollInterval
	}

	var triggered []models.GridLevelTriggeredData

	for i := range levels {
		level := &levels[i]
		if level.Triggered {
			continue
		}

		side := w.evaluate(symbol, i, level, price)
		if side == "" {
			continue
		}

		level.Triggered = true
		if side == models.SideBuy {
			level.Status = models.LevelStatusBuyTriggered
		} else {
			level.Status = models.LevelStatusSellTriggered
		}

		w.logger.Info("Level triggered",
			zap.String("symbol", symbol),
			zap.Int("level", i),
			zap.String("side", side),
			zap.Float64("price", price))

		if err := w.store.AppendLog(opCtx, symbol, models.TradeLogEntry{
			Type:      side,
			Price:     price,
			Timestamp: w.clock.Now().Unix(),
		}); err != nil {
			w.logger.Error("Audit log append failed", zap.String("symbol", symbol), zap.Error(err))
		}

		quantity := level.Buy.Quantity
		if side == models.SideSell {
			quantity = level.Sell.Quantity
		}

		fill, err := w.exec.PlaceMarketOrder(opCtx, execution.Order{
			Symbol:   symbol,
			Side:     side,
			Quantity: quantity,
			RefPrice: price,
		})
		if err != nil {
			w.logger.Error("Order execution failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			w.recorder.Record(opCtx, fill)
		}

		w.notifier.Notify(opCtx, fmt.Sprintf("💥 <b>%s</b> %s triggered at %.2f", symbol, side, price))

		triggered = append(triggered, models.GridLevelTriggeredData{
			LevelIndex: i,
			Side:       strings.ToLower(side),
			Status:     "triggered",
		})
	}

	if len(triggered) > 0 {
		// One write per iteration. This task is the sole writer for the
		// symbol's live state, so plain read-modify-write is safe.
		if err := w.store.SaveLiveGrid(opCtx, symbol, levels); err != nil {
			w.logger.Error("Live grid write failed", zap.String("symbol", symbol), zap.Error(err))
		}

		for _, data := range triggered {
			w.publisher.Publish(opCtx, models.EventGridLevelTriggered, symbol, data)
		}
	}

	return w.pollInterval
}

// evaluate returns the triggering side for an untriggered level, or
// "". BUY is checked first, so a malformed grid where both sides match
// resolves to BUY deterministically. A side with an unparseable price
// is skipped and logged; the other side is still evaluated.
func (w *SymbolWatcher) evaluate(symbol string, index int, level *models.GridLevel, price float64) string {
	buy, err := strconv.ParseFloat(level.Buy.Price, 64)
	if err != nil {
		w.logger.Warn("Malformed buy price",
			zap.String("symbol", symbol), zap.Int("level", index), zap.String("price", level.Buy.Price))
	} else if price <= buy {
		return models.SideBuy
	}

	sell, err := strconv.ParseFloat(level.Sell.Price, 64)
	if err != nil {
		w.logger.Warn("Malformed sell price",
			zap.String("symbol", symbol), zap.Int("level", index), zap.String("price", level.Sell.Price))
	} else if price >= sell {
		return models.SideSell
	}

	return ""
}
