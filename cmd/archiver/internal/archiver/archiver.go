package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// Archiver drains the fills topic into archive:SYMBOL lists. Messages
// are sharded to workers by symbol so each symbol's archive keeps its
// fill order.
type Archiver struct {
	logger     Logger
	sink       ArchiveSink
	reader     KafkaReader
	numWorkers int
}

func NewArchiver(logger Logger, sink ArchiveSink, reader KafkaReader, numWorkers int) *Archiver {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Archiver{
		logger:     logger,
		sink:       sink,
		reader:     reader,
		numWorkers: numWorkers,
	}
}

func (a *Archiver) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, a.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < a.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go a.worker(i, workerChans[i], &wg)
	}

	go func() {
		a.logger.Info("Archiver started", zap.Int("workers", a.numWorkers))
		for {
			m, err := a.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				a.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic sharding: same symbol always goes to the same worker
			workerID := getWorkerID(m.Key, a.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				a.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutdown signal received, stopping archiver...")

	for _, ch := range workerChans {
		close(ch)
	}
	a.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (a *Archiver) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background() // Background context prevents cancellation mid-Redis write

	// Per-worker deduplication; works because of deterministic sharding
	lastTs := make(map[string]int64)

	for payload := range msgs {
		var fill models.FillRecord
		if err := json.Unmarshal(payload, &fill); err != nil {
			a.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}

		if fill.Timestamp <= lastTs[fill.Symbol] {
			a.logger.Debug("Skipping duplicate fill",
				zap.String("symbol", fill.Symbol), zap.Int64("ts", fill.Timestamp))
			continue
		}

		if err := a.sink.AppendArchive(ctx, fill.Symbol, fill); err != nil {
			a.logger.Error("Archive append failed", zap.Error(err), zap.String("symbol", fill.Symbol))
		} else {
			a.logger.Debug("Archived fill",
				zap.String("symbol", fill.Symbol), zap.Int("worker_id", id))
			lastTs[fill.Symbol] = fill.Timestamp
		}
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32()) % numWorkers
}
