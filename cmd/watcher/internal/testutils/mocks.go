package testutils

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/watcher/internal/execution"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/store"
)

// Compile-time check to ensure MockGridStore implements GridStore
var _ store.GridStore = (*MockGridStore)(nil)

// MockGridStore simulates Redis with in-memory maps
type MockGridStore struct {
	Mu         sync.Mutex
	Settings   map[string]*models.GridSettings
	Live       map[string][]models.GridLevel
	Monitoring []string
	Logs       map[string][]models.TradeLogEntry
	Archive    map[string][]models.FillRecord

	MonitoringErr error
	LiveReadErr   error
	LiveWrites    map[string]int
}

func NewMockGridStore() *MockGridStore {
	return &MockGridStore{
		Settings:   make(map[string]*models.GridSettings),
		Live:       make(map[string][]models.GridLevel),
		Logs:       make(map[string][]models.TradeLogEntry),
		Archive:    make(map[string][]models.FillRecord),
		LiveWrites: make(map[string]int),
	}
}

func copyLevels(levels []models.GridLevel) []models.GridLevel {
	out := make([]models.GridLevel, len(levels))
	copy(out, levels)
	return out
}

func (m *MockGridStore) GetSettings(ctx context.Context, symbol string) (*models.GridSettings, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	s, ok := m.Settings[symbol]
	if !ok {
		return nil, nil
	}
	clone := *s
	clone.Levels = copyLevels(s.Levels)
	return &clone, nil
}

func (m *MockGridStore) SaveSettings(ctx context.Context, settings *models.GridSettings) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	clone := *settings
	clone.Levels = copyLevels(settings.Levels)
	m.Settings[settings.Symbol] = &clone
	return nil
}

func (m *MockGridStore) GetLiveGrid(ctx context.Context, symbol string) ([]models.GridLevel, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.LiveReadErr != nil {
		return nil, m.LiveReadErr
	}
	return copyLevels(m.Live[symbol]), nil
}

func (m *MockGridStore) SaveLiveGrid(ctx context.Context, symbol string, levels []models.GridLevel) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Live[symbol] = copyLevels(levels)
	m.LiveWrites[symbol]++
	return nil
}

func (m *MockGridStore) DeleteLiveGrid(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	delete(m.Live, symbol)
	return nil
}

func (m *MockGridStore) GetMonitoringSet(ctx context.Context) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.MonitoringErr != nil {
		return nil, m.MonitoringErr
	}
	out := make([]string, len(m.Monitoring))
	copy(out, m.Monitoring)
	return out, nil
}

func (m *MockGridStore) SetMonitoring(ctx context.Context, symbol string, active bool) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	next := m.Monitoring[:0:0]
	for _, s := range m.Monitoring {
		if s != symbol {
			next = append(next, s)
		}
	}
	if active {
		next = append(next, symbol)
	}
	m.Monitoring = next
	return nil
}

// SetMonitoringList swaps the whole desired set at once
func (m *MockGridStore) SetMonitoringList(symbols []string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Monitoring = append([]string(nil), symbols...)
}

func (m *MockGridStore) AppendLog(ctx context.Context, symbol string, entry models.TradeLogEntry) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Logs[symbol] = append(m.Logs[symbol], entry)
	return nil
}

func (m *MockGridStore) GetLogs(ctx context.Context, symbol string, limit int64) ([]models.TradeLogEntry, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]models.TradeLogEntry(nil), m.Logs[symbol]...), nil
}

func (m *MockGridStore) AppendArchive(ctx context.Context, symbol string, record models.FillRecord) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Archive[symbol] = append(m.Archive[symbol], record)
	return nil
}

func (m *MockGridStore) GetArchive(ctx context.Context, symbol string, start, end int64) ([]models.FillRecord, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	rows := m.Archive[symbol]
	if start >= int64(len(rows)) {
		return nil, nil
	}
	if end >= int64(len(rows)) {
		end = int64(len(rows)) - 1
	}
	return append([]models.FillRecord(nil), rows[start:end+1]...), nil
}

func (m *MockGridStore) Ping(ctx context.Context) error { return nil }
func (m *MockGridStore) Close() error                   { return nil }

// PriceStep is one scripted price feed response
type PriceStep struct {
	Price float64
	Err   error
}

// MockPriceFeed replays a scripted price sequence; the last step
// repeats once the script runs out.
type MockPriceFeed struct {
	Mu    sync.Mutex
	Steps []PriceStep
	index int
	calls int
}

func (m *MockPriceFeed) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.calls++
	if len(m.Steps) == 0 {
		return 0, errors.New("no scripted prices")
	}
	i := m.index
	if i >= len(m.Steps) {
		i = len(m.Steps) - 1
	} else {
		m.index++
	}
	return m.Steps[i].Price, m.Steps[i].Err
}

func (m *MockPriceFeed) Calls() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.calls
}

// MockExecutor records placed orders and returns synthetic fills
type MockExecutor struct {
	Mu     sync.Mutex
	Orders []execution.Order
	Err    error
}

func (m *MockExecutor) PlaceMarketOrder(ctx context.Context, order execution.Order) (models.FillRecord, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Orders = append(m.Orders, order)
	if m.Err != nil {
		return models.FillRecord{}, m.Err
	}
	qty, _ := strconv.ParseFloat(order.Quantity, 64)
	return models.FillRecord{
		OrderID:   fmt.Sprintf("mock-%d", len(m.Orders)),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Price:     order.RefPrice,
		Quantity:  qty,
		Timestamp: time.Now().UnixMicro(),
		Simulated: true,
	}, nil
}

func (m *MockExecutor) OrderCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Orders)
}

// PublishedEvent is one captured publisher call
type PublishedEvent struct {
	Type   string
	Symbol string
	Data   any
}

type MockPublisher struct {
	Mu     sync.Mutex
	Events []PublishedEvent
}

func (m *MockPublisher) Publish(ctx context.Context, eventType, symbol string, data any) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{Type: eventType, Symbol: symbol, Data: data})
}

func (m *MockPublisher) EventCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Events)
}

type MockNotifier struct {
	Mu    sync.Mutex
	Texts []string
}

func (m *MockNotifier) Notify(ctx context.Context, text string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Texts = append(m.Texts, text)
}

type MockRecorder struct {
	Mu    sync.Mutex
	Fills []models.FillRecord
}

func (m *MockRecorder) Record(ctx context.Context, fill models.FillRecord) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Fills = append(m.Fills, fill)
}

// MockKafkaWriter captures written messages
type MockKafkaWriter struct {
	Mu       sync.Mutex
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// FakeClock returns a fixed time
type FakeClock struct{ T time.Time }

func (c FakeClock) Now() time.Time { return c.T }
