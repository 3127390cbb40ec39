package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/models"
)

// Compile-time check to ensure BinanceExecutor implements Executor
var _ Executor = (*BinanceExecutor)(nil)

// BinanceExecutor places signed market orders against the exchange.
type BinanceExecutor struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	logger    *zap.Logger
}

func NewBinanceExecutor(cfg config.BinanceConfig, logger *zap.Logger) *BinanceExecutor {
	return &BinanceExecutor{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

type orderResponse struct {
	OrderID            int64  `json:"orderId"`
	Symbol             string `json:"symbol"`
	ExecutedQty        string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status             string `json:"status"`
}

func (b *BinanceExecutor) PlaceMarketOrder(ctx context.Context, order Order) (models.FillRecord, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(order.Symbol))
	params.Set("side", order.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", order.Quantity)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	endpoint := b.baseURL + "/api/v3/order?" + query + "&signature=" + signature
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return models.FillRecord{}, &ExecutionError{Symbol: order.Symbol, Side: order.Side, Err: err}
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return models.FillRecord{}, &ExecutionError{Symbol: order.Symbol, Side: order.Side, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FillRecord{}, &ExecutionError{
			Symbol: order.Symbol,
			Side:   order.Side,
			Err:    fmt.Errorf("order rejected: status %d", resp.StatusCode),
		}
	}

	var decoded orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.FillRecord{}, &ExecutionError{Symbol: order.Symbol, Side: order.Side, Err: err}
	}

	qty, _ := strconv.ParseFloat(decoded.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(decoded.CummulativeQuoteQty, 64)

	avgPrice := order.RefPrice
	if qty > 0 && quote > 0 {
		avgPrice = quote / qty
	}

	fill := models.FillRecord{
		OrderID:          strconv.FormatInt(decoded.OrderID, 10),
		Symbol:           decoded.Symbol,
		Side:             order.Side,
		Price:            avgPrice,
		Quantity:         qty,
		TotalBuyQuoteQty: quote,
		Timestamp:        time.Now().UnixMicro(),
	}

	b.logger.Info("Order filled",
		zap.String("symbol", fill.Symbol),
		zap.String("side", fill.Side),
		zap.String("status", decoded.Status),
		zap.Float64("price", fill.Price),
		zap.Float64("qty", fill.Quantity))

	return fill, nil
}
