package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
)

// TransientError marks price feed failures that the caller should
// retry on its next scheduled iteration.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "binance: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// TickerPrice is the raw ticker response, prices as decimal strings.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Client is a thin wrapper over the public REST API. Only the ticker
// endpoint is used by the watcher; the API service passes it through.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.BinanceConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Ticker fetches the current ticker for a symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (TickerPrice, error) {
	endpoint := c.baseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(strings.ToUpper(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TickerPrice{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return TickerPrice{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TickerPrice{}, &TransientError{Err: fmt.Errorf("ticker %s: status %d", symbol, resp.StatusCode)}
	}

	var ticker TickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return TickerPrice{}, &TransientError{Err: err}
	}
	return ticker, nil
}

// CurrentPrice returns the latest traded price for a symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := c.Ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, &TransientError{Err: fmt.Errorf("bad price %q for %s: %w", ticker.Price, symbol, err)}
	}
	return price, nil
}
