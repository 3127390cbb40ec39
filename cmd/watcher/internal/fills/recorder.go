package fills

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// KafkaWriter abstracts the output stream
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder ships executed fills to the fills topic for the archiver.
// Recording is best-effort: a broker outage must never stall or fail
// a watch iteration.
type Recorder struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewRecorder(writer KafkaWriter, logger *zap.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, fill models.FillRecord) {
	payload, err := json.Marshal(fill)
	if err != nil {
		r.logger.Error("Fill marshal failed", zap.Error(err))
		return
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fill.Symbol), // Key ensures partition ordering per symbol
		Value: payload,
	})
	if err != nil {
		r.logger.Warn("Fill record failed", zap.String("symbol", fill.Symbol), zap.Error(err))
	}
}

func (r *Recorder) Close() error {
	return r.writer.Close()
}
