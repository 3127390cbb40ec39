package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

func symbolParam(r *http.Request, fallback string) string {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = fallback
	}
	return strings.ToUpper(symbol)
}

func (h *Handler) GetGridSettings(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}

	settings, err := h.store.GetSettings(r.Context(), symbol)
	if err != nil {
		h.logger.Error("Settings read failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	levels := []models.GridLevel{}
	if settings != nil {
		levels = settings.Levels
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":            symbol,
		"gridTradeSettings": levels,
	})
}

// SaveGridSettings overwrites the settings template. This is the only
// path that may reset a level's triggered flag.
func (h *Handler) SaveGridSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.GridSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if settings.Symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}

	for i, level := range settings.Levels {
		if _, err := strconv.ParseFloat(level.Buy.Price, 64); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "level "+strconv.Itoa(i)+": bad buy price")
			return
		}
		if _, err := strconv.ParseFloat(level.Sell.Price, 64); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "level "+strconv.Itoa(i)+": bad sell price")
			return
		}
		if settings.Levels[i].Status == "" {
			settings.Levels[i].Status = models.LevelStatusIdle
		}
	}

	if err := h.store.SaveSettings(r.Context(), &settings); err != nil {
		h.logger.Error("Settings write failed", zap.String("symbol", settings.Symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(r.Context(), models.EventGridSettingsUpdated, settings.Symbol, models.GridSettingsUpdatedData{
		LevelsCount: len(settings.Levels),
		Levels:      settings.Levels,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Settings saved",
		"levels":  len(settings.Levels),
	})
}

// StartGrid copies the settings template into the live state the
// watcher owns and turns monitoring on.
func (h *Handler) StartGrid(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	ctx := r.Context()

	settings, err := h.store.GetSettings(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var levels []models.GridLevel
	if settings == nil || len(settings.Levels) == 0 {
		levels = models.DefaultGrid()
		h.publisher.Publish(ctx, models.EventGridDefaultCreated, symbol, models.GridDefaultCreatedData{Levels: levels})
	} else {
		levels = make([]models.GridLevel, len(settings.Levels))
		copy(levels, settings.Levels)
	}

	// The live copy always starts untriggered
	for i := range levels {
		levels[i].Triggered = false
		levels[i].Status = models.LevelStatusIdle
	}

	if err := h.store.SaveLiveGrid(ctx, symbol, levels); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.SetMonitoring(ctx, symbol, true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(ctx, models.EventGridStarted, symbol, models.GridStartedData{
		LevelsCount: len(levels),
		Monitoring:  true,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"symbol":  symbol,
		"levels":  len(levels),
	})
}

func (h *Handler) StopGrid(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	ctx := r.Context()

	if err := h.store.DeleteLiveGrid(ctx, symbol); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.SetMonitoring(ctx, symbol, false); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(ctx, models.EventGridStopped, symbol, models.GridStoppedData{Monitoring: false})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"symbol":  symbol,
	})
}

func (h *Handler) GridStatus(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "BTCUSDT")
	ctx := r.Context()

	symbols, err := h.store.GetMonitoringSet(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	isActive := false
	for _, s := range symbols {
		if s == symbol {
			isActive = true
			break
		}
	}

	levels, err := h.store.GetLiveGrid(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publisher.Publish(ctx, models.EventGridStatusRequested, symbol, models.GridStatusRequestedData{
		IsActive:    isActive,
		HasLiveGrid: len(levels) > 0,
		GridData:    levels,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"isActive":  isActive,
		"gridTrade": levels,
	})
}

func (h *Handler) GetMonitoring(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.GetMonitoringSet(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

func (h *Handler) UpdateMonitoring(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "active must be a bool")
		return
	}

	if err := h.store.SetMonitoring(r.Context(), symbol, active); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	symbols, err := h.store.GetMonitoringSet(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"symbols": symbols,
	})
}
