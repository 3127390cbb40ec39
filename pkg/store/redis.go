package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

const (
	settingsKeyPrefix = "grid:settings:"
	liveKeyPrefix     = "grid:"
	logsKeyPrefix     = "logs:"
	archiveKeyPrefix  = "archive:"
	monitoringKey     = "monitoring-symbols"
)

// Compile-time check to ensure RedisStore implements GridStore
var _ GridStore = (*RedisStore)(nil)

// RedisStore keeps everything as schema-checked JSON blobs. The live
// grid is written with a plain read-modify-write: exactly one watch
// task owns a symbol's live state, so there is nothing to race with.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func settingsKey(symbol string) string { return settingsKeyPrefix + strings.ToUpper(symbol) }
func liveKey(symbol string) string     { return liveKeyPrefix + strings.ToUpper(symbol) }
func logsKey(symbol string) string     { return logsKeyPrefix + strings.ToUpper(symbol) }
func archiveKey(symbol string) string  { return archiveKeyPrefix + strings.ToUpper(symbol) }

func (r *RedisStore) GetSettings(ctx context.Context, symbol string) (*models.GridSettings, error) {
	data, err := r.client.Get(ctx, settingsKey(symbol)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.GridSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("corrupt grid settings for %s: %w", symbol, err)
	}
	return &settings, nil
}

func (r *RedisStore) SaveSettings(ctx context.Context, settings *models.GridSettings) error {
	settings.Symbol = strings.ToUpper(settings.Symbol)
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, settingsKey(settings.Symbol), payload, 0).Err()
}

func (r *RedisStore) GetLiveGrid(ctx context.Context, symbol string) ([]models.GridLevel, error) {
	data, err := r.client.Get(ctx, liveKey(symbol)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var levels []models.GridLevel
	if err := json.Unmarshal([]byte(data), &levels); err != nil {
		return nil, fmt.Errorf("corrupt live grid for %s: %w", symbol, err)
	}
	return levels, nil
}

func (r *RedisStore) SaveLiveGrid(ctx context.Context, symbol string, levels []models.GridLevel) error {
	payload, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, liveKey(symbol), payload, 0).Err()
}

func (r *RedisStore) DeleteLiveGrid(ctx context.Context, symbol string) error {
	return r.client.Del(ctx, liveKey(symbol)).Err()
}

func (r *RedisStore) GetMonitoringSet(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, monitoringKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var symbols []string
	if err := json.Unmarshal([]byte(data), &symbols); err != nil {
		return nil, fmt.Errorf("corrupt monitoring set: %w", err)
	}
	return symbols, nil
}

func (r *RedisStore) SetMonitoring(ctx context.Context, symbol string, active bool) error {
	symbol = strings.ToUpper(symbol)

	current, err := r.GetMonitoringSet(ctx)
	if err != nil {
		return err
	}

	next := make([]string, 0, len(current)+1)
	for _, s := range current {
		if s != symbol {
			next = append(next, s)
		}
	}
	if active {
		next = append(next, symbol)
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, monitoringKey, payload, 0).Err()
}

func (r *RedisStore) AppendLog(ctx context.Context, symbol string, entry models.TradeLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, logsKey(symbol), payload).Err()
}

// GetLogs returns up to limit most recent entries, oldest first.
func (r *RedisStore) GetLogs(ctx context.Context, symbol string, limit int64) ([]models.TradeLogEntry, error) {
	raw, err := r.client.LRange(ctx, logsKey(symbol), -limit, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.TradeLogEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.TradeLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisStore) AppendArchive(ctx context.Context, symbol string, record models.FillRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, archiveKey(symbol), payload).Err()
}

func (r *RedisStore) GetArchive(ctx context.Context, symbol string, start, end int64) ([]models.FillRecord, error) {
	raw, err := r.client.LRange(ctx, archiveKey(symbol), start, end).Result()
	if err != nil {
		return nil, err
	}

	records := make([]models.FillRecord, 0, len(raw))
	for _, item := range raw {
		var record models.FillRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
