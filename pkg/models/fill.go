package models

// FillRecord is what the watcher writes to the fills topic after an
// order executes. The archiver appends these to archive:SYMBOL, which
// is what the archive endpoint aggregates.
type FillRecord struct {
	OrderID          string  `json:"orderId"`
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Price            float64 `json:"price"`
	Quantity         float64 `json:"quantity"`
	Profit           float64 `json:"profit"`
	TotalBuyQuoteQty float64 `json:"totalBuyQuoteQty"`
	Timestamp        int64   `json:"timestamp"` // unix micro
	Simulated        bool    `json:"simulated"`
}
