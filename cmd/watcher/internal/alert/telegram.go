package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
)

// Notifier delivers human-readable alerts. Delivery is best-effort;
// implementations never surface errors to the caller.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Compile-time check to ensure TelegramNotifier implements Notifier
var _ Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier sends alerts to a chat via the Bot API.
type TelegramNotifier struct {
	token  string
	chatID string
	http   *http.Client
	logger *zap.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

func (t *TelegramNotifier) Notify(ctx context.Context, text string) {
	if t.token == "" || t.chatID == "" {
		t.logger.Debug("Telegram not configured, dropping alert")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		t.logger.Error("Alert marshal failed", zap.Error(err))
		return
	}

	url := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.logger.Error("Alert request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		t.logger.Warn("Alert delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("Alert rejected", zap.Int("status", resp.StatusCode))
	}
}
