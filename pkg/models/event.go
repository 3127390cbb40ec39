package models

// Known domain event types. The gateway enriches these per type;
// anything else still reaches clients through a generic wrapper.
const (
	EventGridStarted         = "grid-started"
	EventGridStopped         = "grid-stopped"
	EventGridSettingsUpdated = "grid-settings-updated"
	EventGridLevelTriggered  = "grid-level-triggered"
	EventGridDefaultCreated  = "grid-default-created"
	EventGridStatusRequested = "grid-status-requested"
	EventTest                = "test-event"
)

// Event is a domain event on the "events" channel. Immutable once
// published.
type Event struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Per-type payload schemas. Publishers use these instead of loose maps
// so the event set stays a closed union; unknown types remain possible
// on the wire and are passed through untouched.

type GridStartedData struct {
	LevelsCount int  `json:"levels_count"`
	Monitoring  bool `json:"monitoring"`
}

type GridStoppedData struct {
	Monitoring bool `json:"monitoring"`
}

type GridSettingsUpdatedData struct {
	LevelsCount int         `json:"levels_count"`
	Levels      []GridLevel `json:"levels"`
}

type GridLevelTriggeredData struct {
	LevelIndex int    `json:"level_index"`
	Side       string `json:"side"`
	Status     string `json:"status"`
}

type GridDefaultCreatedData struct {
	Levels []GridLevel `json:"levels"`
}

type GridStatusRequestedData struct {
	IsActive    bool `json:"is_active"`
	HasLiveGrid bool `json:"has_live_grid"`
	GridData    any  `json:"grid_data"`
}

type TestEventData struct {
	Message string `json:"message"`
}
