package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/events"
)

// EventSource streams domain events off the Redis "events" channel.
type EventSource interface {
	Run(ctx context.Context, onMessage func(payload string))
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time check to ensure RedisEventSource implements EventSource
var _ EventSource = (*RedisEventSource)(nil)

// RedisEventSource subscribes to the events channel and feeds payloads
// to a callback. When the broker drops it retries on a fixed delay;
// the gateway keeps serving clients in the meantime.
type RedisEventSource struct {
	client     *redis.Client
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewRedisEventSource(client *redis.Client, logger *zap.Logger) *RedisEventSource {
	return &RedisEventSource{
		client:     client,
		logger:     logger,
		retryDelay: 5 * time.Second,
	}
}

func (s *RedisEventSource) Run(ctx context.Context, onMessage func(payload string)) {
	for {
		err := s.listen(ctx, onMessage)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("Events subscription lost, retrying",
				zap.Error(err), zap.Duration("delay", s.retryDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *RedisEventSource) listen(ctx context.Context, onMessage func(payload string)) error {
	pubsub := s.client.Subscribe(ctx, events.Channel)
	defer pubsub.Close()

	// Confirm the subscription before reading
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("Listening for events", zap.String("channel", events.Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			onMessage(msg.Payload)
		}
	}
}

func (s *RedisEventSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisEventSource) Close() error {
	return s.client.Close()
}
