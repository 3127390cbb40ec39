package watcher

import (
	"context"
	"time"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// PriceFeed abstracts the exchange ticker
type PriceFeed interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// EventPublisher abstracts the domain event channel
type EventPublisher interface {
	Publish(ctx context.Context, eventType, symbol string, data any)
}

// Notifier abstracts best-effort human alerting
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// FillRecorder abstracts the fills pipeline
type FillRecorder interface {
	Record(ctx context.Context, fill models.FillRecord)
}

// Clock exists for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
