package watcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/testutils"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/watcher"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

func testConfig() config.WatcherConfig {
	return config.WatcherConfig{
		ReconcileInterval: 10 * time.Millisecond,
		PollInterval:      2 * time.Millisecond,
		PriceBackoff:      time.Millisecond,
		NumWorkers:        1,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type watchFixture struct {
	store     *testutils.MockGridStore
	feed      *testutils.MockPriceFeed
	exec      *testutils.MockExecutor
	notifier  *testutils.MockNotifier
	publisher *testutils.MockPublisher
	recorder  *testutils.MockRecorder
	watcher   *watcher.SymbolWatcher
}

func newWatchFixture(steps []testutils.PriceStep) *watchFixture {
	f := &watchFixture{
		store:     testutils.NewMockGridStore(),
		feed:      &testutils.MockPriceFeed{Steps: steps},
		exec:      &testutils.MockExecutor{},
		notifier:  &testutils.MockNotifier{},
		publisher: &testutils.MockPublisher{},
		recorder:  &testutils.MockRecorder{},
	}
	f.watcher = watcher.NewSymbolWatcher(
		f.store, f.feed, f.exec, f.notifier, f.publisher, f.recorder,
		testutils.FakeClock{T: time.Unix(1700000000, 0)},
		testConfig(), zap.NewNop(),
	)
	return f
}

func (f *watchFixture) run(t *testing.T, symbol string) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.watcher.Watch(ctx, symbol)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop after cancel")
		}
	}
}

func level(buy, sell string) models.GridLevel {
	return models.GridLevel{
		Buy:    models.OrderSide{Price: buy, Quantity: "0.001"},
		Sell:   models.OrderSide{Price: sell, Quantity: "0.001"},
		Status: models.LevelStatusIdle,
	}
}

func TestSymbolWatcherBuyTriggersOnce(t *testing.T) {
	f := newWatchFixture([]testutils.PriceStep{
		{Price: 65000}, // between the thresholds, no trigger
		{Price: 64000}, // crosses the buy threshold
		{Price: 63000}, // still below, but the level is spent
	})
	f.store.Live["BTCUSDT"] = []models.GridLevel{level("64000", "66000")}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.feed.Calls() >= 5 })
	stop()

	if got := f.exec.OrderCount(); got != 1 {
		t.Fatalf("expected exactly 1 order, got %d", got)
	}
	f.exec.Mu.Lock()
	order := f.exec.Orders[0]
	f.exec.Mu.Unlock()
	if order.Side != models.SideBuy || order.Symbol != "BTCUSDT" {
		t.Errorf("unexpected order: %+v", order)
	}
	if order.RefPrice != 64000 {
		t.Errorf("expected fill at 64000, got %v", order.RefPrice)
	}

	f.store.Mu.Lock()
	live := f.store.Live["BTCUSDT"]
	writes := f.store.LiveWrites["BTCUSDT"]
	logs := f.store.Logs["BTCUSDT"]
	f.store.Mu.Unlock()

	if !live[0].Triggered || live[0].Status != models.LevelStatusBuyTriggered {
		t.Errorf("expected level triggered with buy-triggered status, got %+v", live[0])
	}
	if writes != 1 {
		t.Errorf("expected a single live grid write, got %d", writes)
	}
	if len(logs) != 1 || logs[0].Type != models.SideBuy || logs[0].Price != 64000 {
		t.Errorf("unexpected trade log: %+v", logs)
	}

	if got := f.publisher.EventCount(); got != 1 {
		t.Fatalf("expected 1 published event, got %d", got)
	}
	f.publisher.Mu.Lock()
	ev := f.publisher.Events[0]
	f.publisher.Mu.Unlock()
	if ev.Type != models.EventGridLevelTriggered {
		t.Errorf("unexpected event type %q", ev.Type)
	}
	data, ok := ev.Data.(models.GridLevelTriggeredData)
	if !ok {
		t.Fatalf("unexpected event payload %T", ev.Data)
	}
	if data.LevelIndex != 0 || data.Side != "buy" || data.Status != "triggered" {
		t.Errorf("unexpected trigger payload: %+v", data)
	}

	f.recorder.Mu.Lock()
	fills := len(f.recorder.Fills)
	f.recorder.Mu.Unlock()
	if fills != 1 {
		t.Errorf("expected 1 recorded fill, got %d", fills)
	}

	f.notifier.Mu.Lock()
	alerts := len(f.notifier.Texts)
	f.notifier.Mu.Unlock()
	if alerts != 1 {
		t.Errorf("expected 1 alert, got %d", alerts)
	}
}

func TestSymbolWatcherSellTriggersOnce(t *testing.T) {
	f := newWatchFixture([]testutils.PriceStep{{Price: 66500}})
	f.store.Live["ETHUSDT"] = []models.GridLevel{level("64000", "66000")}

	stop := f.run(t, "ETHUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.feed.Calls() >= 4 })
	stop()

	if got := f.exec.OrderCount(); got != 1 {
		t.Fatalf("expected exactly 1 order, got %d", got)
	}
	f.exec.Mu.Lock()
	side := f.exec.Orders[0].Side
	f.exec.Mu.Unlock()
	if side != models.SideSell {
		t.Errorf("expected SELL, got %q", side)
	}

	f.store.Mu.Lock()
	live := f.store.Live["ETHUSDT"]
	f.store.Mu.Unlock()
	if live[0].Status != models.LevelStatusSellTriggered {
		t.Errorf("expected sell-triggered status, got %q", live[0].Status)
	}
}

func TestSymbolWatcherBuyWinsTie(t *testing.T) {
	// Inverted grid where a single price satisfies both sides.
	f := newWatchFixture([]testutils.PriceStep{{Price: 64500}})
	f.store.Live["BTCUSDT"] = []models.GridLevel{level("65000", "64000")}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.exec.OrderCount() >= 1 })
	stop()

	if got := f.exec.OrderCount(); got != 1 {
		t.Fatalf("expected 1 order, got %d", got)
	}
	f.exec.Mu.Lock()
	side := f.exec.Orders[0].Side
	f.exec.Mu.Unlock()
	if side != models.SideBuy {
		t.Errorf("tie must resolve to BUY, got %q", side)
	}
}

func TestSymbolWatcherMalformedLevelSkipped(t *testing.T) {
	f := newWatchFixture([]testutils.PriceStep{{Price: 63000}})
	f.store.Live["BTCUSDT"] = []models.GridLevel{
		level("not-a-number", "also-bad"),
		level("64000", "66000"),
	}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.exec.OrderCount() >= 1 })
	stop()

	f.store.Mu.Lock()
	live := f.store.Live["BTCUSDT"]
	f.store.Mu.Unlock()

	if live[0].Triggered {
		t.Error("malformed level must stay untriggered")
	}
	if !live[1].Triggered {
		t.Error("valid level should have triggered")
	}

	if got := f.publisher.EventCount(); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	f.publisher.Mu.Lock()
	data := f.publisher.Events[0].Data.(models.GridLevelTriggeredData)
	f.publisher.Mu.Unlock()
	if data.LevelIndex != 1 {
		t.Errorf("expected level index 1, got %d", data.LevelIndex)
	}
}

func TestSymbolWatcherMalformedSideStillEvaluatesOther(t *testing.T) {
	// Buy side unparseable but the sell side crosses.
	f := newWatchFixture([]testutils.PriceStep{{Price: 67000}})
	f.store.Live["BTCUSDT"] = []models.GridLevel{level("garbage", "66000")}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.exec.OrderCount() >= 1 })
	stop()

	f.exec.Mu.Lock()
	side := f.exec.Orders[0].Side
	f.exec.Mu.Unlock()
	if side != models.SideSell {
		t.Errorf("expected SELL despite malformed buy side, got %q", side)
	}
}

func TestSymbolWatcherPriceFailureBackoff(t *testing.T) {
	f := newWatchFixture([]testutils.PriceStep{
		{Err: errors.New("upstream 502")},
		{Err: errors.New("upstream 502")},
		{Price: 64000},
	})
	f.store.Live["BTCUSDT"] = []models.GridLevel{level("64000", "66000")}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.exec.OrderCount() >= 1 })
	stop()

	// Failed fetches never touch the grid: reads happen only on priced
	// iterations, and the trigger still lands once a price arrives.
	f.store.Mu.Lock()
	triggered := f.store.Live["BTCUSDT"][0].Triggered
	writes := f.store.LiveWrites["BTCUSDT"]
	f.store.Mu.Unlock()
	if !triggered {
		t.Error("expected trigger after feed recovered")
	}
	if writes != 1 {
		t.Errorf("expected a single grid write, got %d", writes)
	}
}

func TestSymbolWatcherExecutionFailureStillPersists(t *testing.T) {
	f := newWatchFixture([]testutils.PriceStep{{Price: 64000}})
	f.exec.Err = errors.New("exchange rejected order")
	f.store.Live["BTCUSDT"] = []models.GridLevel{level("64000", "66000")}

	stop := f.run(t, "BTCUSDT")
	waitFor(t, 2*time.Second, func() bool { return f.exec.OrderCount() >= 1 })
	stop()

	// Trigger state is persisted before execution, so a rejected order
	// must not re-arm the level.
	f.store.Mu.Lock()
	triggered := f.store.Live["BTCUSDT"][0].Triggered
	f.store.Mu.Unlock()
	if !triggered {
		t.Error("level must stay triggered after execution failure")
	}

	f.recorder.Mu.Lock()
	fills := len(f.recorder.Fills)
	f.recorder.Mu.Unlock()
	if fills != 0 {
		t.Errorf("failed order must not be recorded, got %d fills", fills)
	}

	if got := f.publisher.EventCount(); got != 1 {
		t.Errorf("trigger event publishes regardless of execution, got %d", got)
	}
}

func TestControllerReconcilesTasks(t *testing.T) {
	gridStore := testutils.NewMockGridStore()
	gridStore.SetMonitoringList([]string{"BTCUSDT"})

	var mu sync.Mutex
	running := make(map[string]bool)
	starts := make(map[string]int)
	watch := func(ctx context.Context, symbol string) {
		mu.Lock()
		starts[symbol]++
		running[symbol] = true
		mu.Unlock()
		<-ctx.Done()
		mu.Lock()
		running[symbol] = false
		mu.Unlock()
	}

	c := watcher.NewController(gridStore, watch, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running["BTCUSDT"]
	})

	// Growing the set starts a second task without restarting the first
	gridStore.SetMonitoringList([]string{"BTCUSDT", "ETHUSDT"})
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running["ETHUSDT"]
	})

	// Shrinking the set cancels the removed symbol only
	gridStore.SetMonitoringList([]string{"ETHUSDT"})
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !running["BTCUSDT"] && running["ETHUSDT"]
	})

	mu.Lock()
	btcStarts := starts["BTCUSDT"]
	ethStarts := starts["ETHUSDT"]
	mu.Unlock()
	if btcStarts != 1 || ethStarts != 1 {
		t.Errorf("expected one start per symbol, got BTC=%d ETH=%d", btcStarts, ethStarts)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not drain on shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	if running["ETHUSDT"] {
		t.Error("shutdown must stop remaining tasks")
	}
}

func TestControllerAtMostOneTaskPerSymbol(t *testing.T) {
	gridStore := testutils.NewMockGridStore()
	gridStore.SetMonitoringList([]string{"BTCUSDT"})

	var mu sync.Mutex
	starts := 0
	watch := func(ctx context.Context, symbol string) {
		mu.Lock()
		starts++
		mu.Unlock()
		<-ctx.Done()
	}

	c := watcher.NewController(gridStore, watch, 2*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	// Let several reconcile ticks pass
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if starts != 1 {
		t.Errorf("expected a single task start across ticks, got %d", starts)
	}
}

func TestControllerKeepsTasksOnStoreFailure(t *testing.T) {
	gridStore := testutils.NewMockGridStore()
	gridStore.SetMonitoringList([]string{"BTCUSDT"})

	var mu sync.Mutex
	running := false
	watch := func(ctx context.Context, symbol string) {
		mu.Lock()
		running = true
		mu.Unlock()
		<-ctx.Done()
		mu.Lock()
		running = false
		mu.Unlock()
	}

	c := watcher.NewController(gridStore, watch, 2*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running
	})

	gridStore.Mu.Lock()
	gridStore.MonitoringErr = errors.New("redis down")
	gridStore.Mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	stillRunning := running
	mu.Unlock()
	if !stillRunning {
		t.Error("transient store failure must not stop running tasks")
	}

	cancel()
	<-done
}
