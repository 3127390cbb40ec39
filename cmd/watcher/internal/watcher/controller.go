package watcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/store"
)

// WatchFunc is one symbol's long-running watch loop. It returns only
// when its context is cancelled.
type WatchFunc func(ctx context.Context, symbol string)

type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller reconciles the desired monitoring set against running
// watch tasks on a fixed interval. It is the only mutator of the task
// map, so a symbol can never have two live tasks.
type Controller struct {
	store    store.GridStore
	watch    WatchFunc
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	tasks map[string]*taskHandle
}

func NewController(gridStore store.GridStore, watch WatchFunc, interval time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		store:    gridStore,
		watch:    watch,
		interval: interval,
		logger:   logger,
		tasks:    make(map[string]*taskHandle),
	}
}

// Run drives the reconciliation loop until ctx is cancelled, then
// cancels every task and waits for them to drain.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			c.stopAll()
			return nil
		case <-ticker.C:
			c.reconcile(ctx)
		}
	}
}

func (c *Controller) reconcile(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	symbols, err := c.store.GetMonitoringSet(readCtx)
	cancel()
	if err != nil {
		// Transient store failure: keep the current task set, retry next tick
		c.logger.Error("Monitoring set read failed", zap.Error(err))
		return
	}

	desired := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		desired[s] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol := range desired {
		if _, running := c.tasks[symbol]; running {
			continue
		}

		taskCtx, cancelTask := context.WithCancel(ctx)
		handle := &taskHandle{cancel: cancelTask, done: make(chan struct{})}
		c.tasks[symbol] = handle

		go func(sym string) {
			defer close(handle.done)
			c.watch(taskCtx, sym)
		}(symbol)

		c.logger.Info("Watch task started", zap.String("symbol", symbol))
	}

	for symbol, handle := range c.tasks {
		if desired[symbol] {
			continue
		}
		// Cancelling an already-finished task is a no-op
		handle.cancel()
		delete(c.tasks, symbol)
		c.logger.Info("Watch task stopped", zap.String("symbol", symbol))
	}
}

// Running returns the symbols that currently have a watch task.
func (c *Controller) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbols := make([]string, 0, len(c.tasks))
	for s := range c.tasks {
		symbols = append(symbols, s)
	}
	return symbols
}

func (c *Controller) stopAll() {
	c.mu.Lock()
	handles := make([]*taskHandle, 0, len(c.tasks))
	for symbol, handle := range c.tasks {
		handle.cancel()
		handles = append(handles, handle)
		delete(c.tasks, symbol)
	}
	c.mu.Unlock()

	for _, handle := range handles {
		<-handle.done
	}
	c.logger.Info("All watch tasks drained")
}
