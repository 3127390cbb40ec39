package models

// Level status values as stored in Redis and shown in the UI.
const (
	LevelStatusIdle          = "idle"
	LevelStatusBuyTriggered  = "buy-triggered"
	LevelStatusSellTriggered = "sell-triggered"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderSide is one half of a grid level. Prices and quantities are kept
// as strings end to end (the exchange API speaks decimal strings).
type OrderSide struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// GridLevel is a single price band with paired buy/sell thresholds.
// Triggered only ever flips false -> true at runtime; the only reset
// path is an explicit settings overwrite through the API.
type GridLevel struct {
	Buy       OrderSide `json:"buy"`
	Sell      OrderSide `json:"sell"`
	Triggered bool      `json:"triggered"`
	Status    string    `json:"status"`
}

// GridSettings is the user-authored grid template for a symbol. A grid
// start copies it into the live state key the watcher owns.
type GridSettings struct {
	Symbol string      `json:"symbol"`
	Levels []GridLevel `json:"levels"`
}

// TradeLogEntry is one audit record appended to logs:SYMBOL when a
// level triggers.
type TradeLogEntry struct {
	Type      string  `json:"type"` // "BUY" or "SELL"
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// DefaultGrid returns the grid a symbol gets when started without
// saved settings.
func DefaultGrid() []GridLevel {
	return []GridLevel{
		{
			Buy:    OrderSide{Price: "65500.00", Quantity: "0.001"},
			Sell:   OrderSide{Price: "67500.00", Quantity: "0.001"},
			Status: LevelStatusIdle,
		},
		{
			Buy:    OrderSide{Price: "64500.00", Quantity: "0.001"},
			Sell:   OrderSide{Price: "66500.00", Quantity: "0.001"},
			Status: LevelStatusIdle,
		},
	}
}
