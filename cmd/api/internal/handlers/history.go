package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const logsLimit = 100

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}

	entries, err := h.store.GetLogs(r.Context(), symbol, logsLimit)
	if err != nil {
		h.logger.Error("Logs read failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  200,
		"message": "OK",
		"data":    map[string]any{"rows": entries},
	})
}

func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r, "")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}

	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit < 1 {
		limit = 50
	}

	start := (page - 1) * limit
	end := start + limit - 1

	rows, err := h.store.GetArchive(r.Context(), symbol, start, end)
	if err != nil {
		h.logger.Error("Archive read failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var profit, buyQuote float64
	for _, row := range rows {
		profit += row.Profit
		buyQuote += row.TotalBuyQuoteQty
	}
	profitPercentage := 0.0
	if buyQuote > 0 {
		profitPercentage = profit / buyQuote * 100
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  200,
		"message": "OK",
		"data": map[string]any{
			"rows": rows,
			"stats": map[string]any{
				"profit":           profit,
				"profitPercentage": profitPercentage,
				"trades":           len(rows),
			},
		},
	})
}
