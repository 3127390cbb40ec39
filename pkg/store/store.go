package store

import (
	"context"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// GridStore is the persistence boundary for grid configuration, live
// grid state, the monitoring set, and the append-only log lists.
type GridStore interface {
	GetSettings(ctx context.Context, symbol string) (*models.GridSettings, error)
	SaveSettings(ctx context.Context, settings *models.GridSettings) error

	GetLiveGrid(ctx context.Context, symbol string) ([]models.GridLevel, error)
	SaveLiveGrid(ctx context.Context, symbol string, levels []models.GridLevel) error
	DeleteLiveGrid(ctx context.Context, symbol string) error

	GetMonitoringSet(ctx context.Context) ([]string, error)
	SetMonitoring(ctx context.Context, symbol string, active bool) error

	AppendLog(ctx context.Context, symbol string, entry models.TradeLogEntry) error
	GetLogs(ctx context.Context, symbol string, limit int64) ([]models.TradeLogEntry, error)

	AppendArchive(ctx context.Context, symbol string, record models.FillRecord) error
	GetArchive(ctx context.Context, symbol string, start, end int64) ([]models.FillRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
