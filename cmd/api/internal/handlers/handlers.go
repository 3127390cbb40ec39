package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/binance"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/store"
)

// EventPublisher abstracts the domain event channel
type EventPublisher interface {
	Publish(ctx context.Context, eventType, symbol string, data any)
}

// PriceFeed abstracts the exchange ticker
type PriceFeed interface {
	Ticker(ctx context.Context, symbol string) (binance.TickerPrice, error)
}

// Handler is the HTTP collaborator surface: thin pass-throughs to the
// store plus an event publish on state-changing calls.
type Handler struct {
	store     store.GridStore
	publisher EventPublisher
	feed      PriceFeed
	logger    *zap.Logger
}

func New(gridStore store.GridStore, publisher EventPublisher, feed PriceFeed, logger *zap.Logger) *Handler {
	return &Handler{
		store:     gridStore,
		publisher: publisher,
		feed:      feed,
		logger:    logger,
	}
}

func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/grid-trade-settings", h.GetGridSettings).Methods(http.MethodGet)
	api.HandleFunc("/grid-trade-settings", h.SaveGridSettings).Methods(http.MethodPost)

	api.HandleFunc("/grid-trade", h.GridStatus).Methods(http.MethodGet)
	api.HandleFunc("/grid-trade/start", h.StartGrid).Methods(http.MethodPost)
	api.HandleFunc("/grid-trade/stop", h.StopGrid).Methods(http.MethodPost)

	api.HandleFunc("/monitoring", h.GetMonitoring).Methods(http.MethodGet)
	api.HandleFunc("/monitoring", h.UpdateMonitoring).Methods(http.MethodPost)

	api.HandleFunc("/logs", h.GetLogs).Methods(http.MethodGet)
	api.HandleFunc("/archive", h.GetArchive).Methods(http.MethodPost)
	api.HandleFunc("/price", h.GetPrice).Methods(http.MethodGet)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Binance bot API online 🟢"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	redisStatus := "connected"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		redisStatus = "disconnected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":       "healthy",
		"redis_status": redisStatus,
	})
}

func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "BTCUSDT")

	ticker, err := h.feed.Ticker(r.Context(), symbol)
	if err != nil {
		h.logger.Error("Price fetch failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusBadGateway, "price feed unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": ticker.Symbol,
		"price":  ticker.Price,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"detail": msg})
}
