package archiver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// scriptedReader replays a fixed message sequence, then blocks until
// the context is cancelled.
type scriptedReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	index    int
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.index < len(r.messages) {
		m := r.messages[r.index]
		r.index++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error { return nil }

type memorySink struct {
	mu      sync.Mutex
	records map[string][]models.FillRecord
}

func newMemorySink() *memorySink {
	return &memorySink{records: make(map[string][]models.FillRecord)}
}

func (s *memorySink) AppendArchive(ctx context.Context, symbol string, record models.FillRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[symbol] = append(s.records[symbol], record)
	return nil
}

func (s *memorySink) count(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[symbol])
}

func fillMessage(t *testing.T, symbol string, ts int64) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(models.FillRecord{
		OrderID:   "o",
		Symbol:    symbol,
		Side:      models.SideBuy,
		Price:     64000,
		Quantity:  0.001,
		Timestamp: ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(symbol), Value: payload}
}

func runArchiver(t *testing.T, reader KafkaReader, sink ArchiveSink, workers int, settle func() bool) {
	t.Helper()
	a := NewArchiver(zap.NewNop(), sink, reader, workers)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !settle() {
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("archiver did not drain")
	}
}

func TestArchiverWritesFills(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		fillMessage(t, "BTCUSDT", 1),
		fillMessage(t, "ETHUSDT", 1),
		fillMessage(t, "BTCUSDT", 2),
	}}
	sink := newMemorySink()

	runArchiver(t, reader, sink, 4, func() bool {
		return sink.count("BTCUSDT") == 2 && sink.count("ETHUSDT") == 1
	})

	if sink.count("BTCUSDT") != 2 || sink.count("ETHUSDT") != 1 {
		t.Errorf("unexpected archive counts: BTC=%d ETH=%d",
			sink.count("BTCUSDT"), sink.count("ETHUSDT"))
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	btc := sink.records["BTCUSDT"]
	if btc[0].Timestamp != 1 || btc[1].Timestamp != 2 {
		t.Errorf("fill order lost: %+v", btc)
	}
}

func TestArchiverDeduplicatesByTimestamp(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		fillMessage(t, "BTCUSDT", 5),
		fillMessage(t, "BTCUSDT", 5), // redelivery
		fillMessage(t, "BTCUSDT", 3), // stale
		fillMessage(t, "BTCUSDT", 6),
	}}
	sink := newMemorySink()

	runArchiver(t, reader, sink, 1, func() bool {
		return sink.count("BTCUSDT") >= 2
	})

	if got := sink.count("BTCUSDT"); got != 2 {
		t.Errorf("expected duplicates and stale fills skipped, got %d records", got)
	}
}

func TestArchiverSkipsGarbagePayloads(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		{Key: []byte("BTCUSDT"), Value: []byte("not json")},
		fillMessage(t, "BTCUSDT", 1),
	}}
	sink := newMemorySink()

	runArchiver(t, reader, sink, 1, func() bool {
		return sink.count("BTCUSDT") == 1
	})

	if got := sink.count("BTCUSDT"); got != 1 {
		t.Errorf("expected only the valid fill, got %d", got)
	}
}

func TestWorkerShardingIsDeterministic(t *testing.T) {
	key := []byte("BTCUSDT")
	first := getWorkerID(key, 4)
	for i := 0; i < 10; i++ {
		if got := getWorkerID(key, 4); got != first {
			t.Fatalf("sharding must be stable, got %d then %d", first, got)
		}
	}
	if first < 0 || first >= 4 {
		t.Errorf("worker ID out of range: %d", first)
	}
}
