// Package bybit adapts the Bybit v5 API into the broker transport
// contract. Native API return codes are normalized into the shared
// retcode space so the executor's rejection table applies unchanged.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/perceptrader/mt5-trader/internal/broker"
)

// Config holds the configuration for the Bybit transport
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment
	Category  string
}

// Transport is a single-connection Bybit session. It is not safe for
// concurrent use; the session serializes all calls through it.
type Transport struct {
	httpClient *bybit_api.Client
	category   string
	demo       bool
	testnet    bool

	mu        sync.Mutex
	connected bool
	lastErr   error
}

// New creates a new Bybit transport
func New(config Config) *Transport {
	var baseURL string
	if config.Demo {
		// Demo trading environment (paper trading)
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	category := config.Category
	if category == "" {
		category = "linear"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Transport{
		httpClient: httpClient,
		category:   category,
		demo:       config.Demo,
		testnet:    config.Testnet,
	}
}

// Environment returns a string describing the current environment
func (t *Transport) Environment() string {
	if t.demo {
		return "demo"
	} else if t.testnet {
		return "testnet"
	}
	return "mainnet"
}

// Connect verifies API reachability with exponential backoff. Rate limits
// and gateway errors are retried; anything else fails immediately.
func (t *Transport) Connect(ctx context.Context) error {
	var lastErr error
	delay := time.Second

	for attempt := 0; attempt <= connectRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := t.fetchInstruments(ctx, "")
		if err == nil {
			t.mu.Lock()
			t.connected = true
			t.lastErr = nil
			t.mu.Unlock()
			return nil
		}
		lastErr = err

		if attempt == connectRetries || !retryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxConnectDelay {
			delay = maxConnectDelay
		}
	}

	return fmt.Errorf("bybit: connect failed: %w", lastErr)
}

const (
	connectRetries  = 3
	maxConnectDelay = time.Minute
)

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

// Symbols lists the tradeable instrument names in the configured category.
func (t *Transport) Symbols(ctx context.Context) ([]string, error) {
	instruments, err := t.fetchInstruments(ctx, "")
	if err != nil {
		t.setLastError(err)
		return nil, err
	}

	names := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		names = append(names, inst.Symbol)
	}
	return names, nil
}

// SymbolInfo combines instrument metadata with the current quote. Crypto
// markets run around the clock, so the calendar reports every weekday as
// one full-day window.
func (t *Transport) SymbolInfo(ctx context.Context, symbol string) (*broker.SymbolInfo, error) {
	instruments, err := t.fetchInstruments(ctx, symbol)
	if err != nil {
		t.setLastError(err)
		return nil, err
	}
	if len(instruments) == 0 {
		err := fmt.Errorf("bybit: unknown symbol %s", symbol)
		t.setLastError(err)
		return nil, err
	}
	inst := instruments[0]

	bid, ask, err := t.fetchQuote(ctx, symbol)
	if err != nil {
		t.setLastError(err)
		return nil, err
	}

	tradeMode := broker.TradeModeDisabled
	if inst.Status == "Trading" {
		tradeMode = broker.TradeModeFull
	}

	tick, _ := strconv.ParseFloat(inst.PriceFilter.TickSize, 64)
	volMin, _ := strconv.ParseFloat(inst.LotSizeFilter.MinOrderQty, 64)
	volStep, _ := strconv.ParseFloat(inst.LotSizeFilter.QtyStep, 64)

	sessions := make(map[time.Weekday][]broker.SessionWindow)
	for d := time.Sunday; d <= time.Saturday; d++ {
		sessions[d] = []broker.SessionWindow{{Start: 0, End: 24 * 3600}}
	}

	return &broker.SymbolInfo{
		Name:       inst.Symbol,
		Digits:     decimalsOf(tick),
		Point:      tick,
		Bid:        bid,
		Ask:        ask,
		TradeMode:  tradeMode,
		FillModes:  []broker.FillMode{broker.FillFOK, broker.FillIOC, broker.FillReturn},
		Sessions:   sessions,
		VolumeMin:  volMin,
		VolumeStep: volStep,
	}, nil
}

// Send places one order. A non-zero API return code comes back as an
// OrderResult carrying the normalized retcode, not as a Go error; errors
// are reserved for the transport path itself.
func (t *Transport) Send(ctx context.Context, req *broker.OrderRequest) (*broker.OrderResult, error) {
	result, err := t.httpClient.NewUtaBybitServiceWithParams(t.orderParams(req)).PlaceOrder(ctx)
	if err != nil {
		t.setLastError(err)
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	serverResp, err := asServerResponse(result)
	if err != nil {
		t.setLastError(err)
		return nil, nil
	}

	raw, _ := json.Marshal(serverResp)

	if serverResp.RetCode != retOK {
		return &broker.OrderResult{
			Retcode: normalizeRetcode(serverResp.RetCode),
			Raw:     raw,
		}, nil
	}

	var placed struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		t.setLastError(fmt.Errorf("failed to marshal result: %w", err))
		return nil, nil
	}
	if err := json.Unmarshal(resultBytes, &placed); err != nil {
		t.setLastError(fmt.Errorf("failed to parse order response: %w", err))
		return nil, nil
	}

	return &broker.OrderResult{
		Ticket:  placed.OrderID,
		Retcode: broker.RetcodeDone,
		Price:   req.Price,
		Volume:  req.Volume,
		Raw:     raw,
	}, nil
}

// orderParams builds the Bybit order payload. Limit kinds carry a resting
// price; stop kinds become conditional orders triggered at the request
// price, since Bybit has no native stop order type.
func (t *Transport) orderParams(req *broker.OrderRequest) map[string]interface{} {
	params := map[string]interface{}{
		"category":    t.category,
		"symbol":      req.Symbol,
		"side":        apiSide(req.Type),
		"orderType":   apiOrderType(req.Type),
		"qty":         strconv.FormatFloat(req.Volume, 'f', -1, 64),
		"timeInForce": apiTimeInForce(req.FillMode),
	}

	switch req.Type {
	case broker.TypeBuyLimit, broker.TypeSellLimit:
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	case broker.TypeBuyStop:
		params["triggerPrice"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["triggerDirection"] = 1 // triggered when the price rises to it
	case broker.TypeSellStop:
		params["triggerPrice"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["triggerDirection"] = 2 // triggered when the price falls to it
	}

	if req.StopLoss > 0 {
		params["stopLoss"] = strconv.FormatFloat(req.StopLoss, 'f', -1, 64)
	}
	if req.TakeProfit > 0 {
		params["takeProfit"] = strconv.FormatFloat(req.TakeProfit, 'f', -1, 64)
	}
	if req.Comment != "" {
		// The magic number travels inside the client order id for later
		// attribution; Bybit has no separate field for it.
		params["orderLinkId"] = fmt.Sprintf("%s-%d-%d", req.Comment, req.Magic, time.Now().UnixNano())
	}
	return params
}

func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Transport) setLastError(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

// instrument is the subset of the instruments-info payload the transport
// needs.
type instrument struct {
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		MinOrderQty string `json:"minOrderQty"`
		QtyStep     string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
}

func (t *Transport) fetchInstruments(ctx context.Context, symbol string) ([]instrument, error) {
	params := map[string]interface{}{
		"category": t.category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	result, err := t.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument info: %w", err)
	}

	serverResp, err := asServerResponse(result)
	if err != nil {
		return nil, err
	}
	if serverResp.RetCode != retOK {
		return nil, &apiError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var listResult struct {
		List []instrument `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &listResult); err != nil {
		return nil, fmt.Errorf("failed to parse instrument info: %w", err)
	}
	return listResult.List, nil
}

func (t *Transport) fetchQuote(ctx context.Context, symbol string) (bid, ask float64, err error) {
	params := map[string]interface{}{
		"category": t.category,
		"symbol":   symbol,
	}

	result, err := t.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get tickers: %w", err)
	}

	serverResp, err := asServerResponse(result)
	if err != nil {
		return 0, 0, err
	}
	if serverResp.RetCode != retOK {
		return 0, 0, &apiError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, 0, fmt.Errorf("failed to parse tickers: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return 0, 0, fmt.Errorf("no ticker for symbol %s", symbol)
	}

	bid, _ = strconv.ParseFloat(tickerResult.List[0].Bid1Price, 64)
	ask, _ = strconv.ParseFloat(tickerResult.List[0].Ask1Price, 64)
	return bid, ask, nil
}

// asServerResponse converts an SDK call result to a ServerResponse. The
// interface parameter keeps the conversion valid for any SDK endpoint.
func asServerResponse(response interface{}) (*bybit_api.ServerResponse, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return nil, fmt.Errorf("invalid response type")
	}
	return serverResp, nil
}

// apiError carries a non-zero API return code through the error path.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

func retryable(err error) bool {
	if apiErr, ok := err.(*apiError); ok {
		return isRetryableCode(apiErr.Code)
	}
	return false
}

func apiSide(ot broker.OrderType) string {
	switch ot {
	case broker.TypeBuy, broker.TypeBuyLimit, broker.TypeBuyStop:
		return "Buy"
	default:
		return "Sell"
	}
}

func apiOrderType(ot broker.OrderType) string {
	switch ot {
	case broker.TypeBuyLimit, broker.TypeSellLimit:
		return "Limit"
	default:
		// market orders and conditional (stop) orders both execute at market
		return "Market"
	}
}

func apiTimeInForce(fm broker.FillMode) string {
	switch fm {
	case broker.FillFOK:
		return "FOK"
	case broker.FillIOC:
		return "IOC"
	default:
		return "GTC"
	}
}

func decimalsOf(step float64) int {
	if step <= 0 {
		return 0
	}
	d := 0
	for step < 1 && d < 10 {
		step *= 10
		d++
	}
	return d
}
