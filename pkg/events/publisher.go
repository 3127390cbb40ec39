package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// Channel is the pub/sub channel the gateway listens on.
const Channel = "events"

// Publisher writes domain events to Redis. Publishing is best-effort:
// failures are logged and swallowed so a broker hiccup never breaks
// the caller's control flow.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, eventType, symbol string, data any) {
	event := models.Event{
		Type:      eventType,
		Symbol:    strings.ToUpper(symbol),
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Event marshal failed", zap.String("type", eventType), zap.Error(err))
		return
	}

	if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
		p.logger.Warn("Event publish failed",
			zap.String("type", eventType),
			zap.String("symbol", event.Symbol),
			zap.Error(err))
	}
}
