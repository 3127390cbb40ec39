package hub

import (
	"fmt"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// rawEvent is a domain event as decoded off the wire. Data stays a map
// here: the enrichment table only picks known fields and unknown event
// kinds pass through with their payload intact.
type rawEvent struct {
	Type      string         `json:"type"`
	Symbol    string         `json:"symbol"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// formatEvent maps a domain event to the client payload, enriched per
// event type. Unknown types are wrapped, never dropped.
func formatEvent(event rawEvent) map[string]any {
	formatted := map[string]any{
		"type":        event.Type,
		"symbol":      event.Symbol,
		"timestamp":   event.Timestamp,
		"server_time": now(),
	}

	data := event.Data
	if data == nil {
		data = map[string]any{}
	}

	switch event.Type {
	case models.EventGridStarted:
		formatted["message"] = fmt.Sprintf("Grid trading started for %s", event.Symbol)
		formatted["status"] = "active"
		formatted["levels_count"] = pick(data, "levels_count", 0)
		formatted["monitoring"] = pick(data, "monitoring", true)

	case models.EventGridStopped:
		formatted["message"] = fmt.Sprintf("Grid trading stopped for %s", event.Symbol)
		formatted["status"] = "inactive"
		formatted["monitoring"] = pick(data, "monitoring", false)

	case models.EventGridSettingsUpdated:
		formatted["message"] = fmt.Sprintf("Grid settings updated for %s", event.Symbol)
		formatted["levels_count"] = pick(data, "levels_count", 0)
		formatted["levels"] = pick[any](data, "levels", []any{})

	case models.EventGridLevelTriggered:
		formatted["message"] = fmt.Sprintf("Grid level triggered for %s", event.Symbol)
		formatted["level_index"] = data["level_index"]
		formatted["side"] = data["side"]
		formatted["trigger_status"] = pick[any](data, "status", "triggered")

	case models.EventGridDefaultCreated:
		formatted["message"] = fmt.Sprintf("Default grid created for %s", event.Symbol)
		formatted["levels"] = pick[any](data, "levels", []any{})

	case models.EventGridStatusRequested:
		formatted["message"] = fmt.Sprintf("Grid status for %s", event.Symbol)
		formatted["is_active"] = pick(data, "is_active", false)
		formatted["has_live_grid"] = pick(data, "has_live_grid", false)
		formatted["grid_data"] = data["grid_data"]

	case models.EventTest:
		formatted["message"] = pick[any](data, "message", "Test event")
		formatted["test"] = true

	default:
		formatted["message"] = fmt.Sprintf("Unknown event: %s", event.Type)
		formatted["raw_data"] = data
	}

	return formatted
}

func pick[T any](data map[string]any, key string, fallback T) any {
	if v, ok := data[key]; ok {
		return v
	}
	return fallback
}
