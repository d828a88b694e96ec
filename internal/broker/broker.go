// Package broker defines the wire contract between the trading core and a
// broker execution endpoint: the order request/result shapes, symbol
// metadata, and the retcode taxonomy shared by all transports.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind is the abstract order kind carried by a trade intent.
type OrderKind string

const (
	KindMarket OrderKind = "market"
	KindLimit  OrderKind = "limit"
	KindStop   OrderKind = "stop"
)

// Action distinguishes immediate deals from pending orders.
type Action string

const (
	ActionDeal    Action = "deal"
	ActionPending Action = "pending"
)

// OrderType is the concrete broker-side order type.
type OrderType string

const (
	TypeBuy       OrderType = "buy"
	TypeSell      OrderType = "sell"
	TypeBuyLimit  OrderType = "buy_limit"
	TypeSellLimit OrderType = "sell_limit"
	TypeBuyStop   OrderType = "buy_stop"
	TypeSellStop  OrderType = "sell_stop"
)

// FillMode is the broker's order-matching policy for partial fills.
type FillMode string

const (
	FillFOK    FillMode = "fok"    // Fill-or-Kill
	FillIOC    FillMode = "ioc"    // Immediate-or-Cancel
	FillReturn FillMode = "return" // partial fills allowed, remainder stays
)

// TimeInForce governs how long an order remains active.
type TimeInForce string

const (
	TimeGTC TimeInForce = "gtc"
)

// TradeMode is the instrument's advertised trading permission.
type TradeMode string

const (
	TradeModeFull       TradeMode = "full"
	TradeModeDisabled   TradeMode = "disabled"
	TradeModeRestricted TradeMode = "restricted" // close-only, long-only, short-only
)

// SessionWindow is one trading window within a day, in seconds from
// midnight server time. End is exclusive. When Start > End the window wraps
// midnight into the next day.
type SessionWindow struct {
	Start int
	End   int
}

// SymbolInfo is the broker's metadata for one instrument. Sessions is nil
// when the broker does not publish a session calendar; the market probe
// falls back to a heuristic in that case.
type SymbolInfo struct {
	Name      string
	Digits    int
	Point     float64
	Bid       float64
	Ask       float64
	TradeMode TradeMode
	FillModes []FillMode
	Sessions  map[time.Weekday][]SessionWindow
	VolumeMin float64
	VolumeStep float64
}

// SupportsFill reports whether the symbol advertises the given fill mode.
func (s *SymbolInfo) SupportsFill(mode FillMode) bool {
	for _, m := range s.FillModes {
		if m == mode {
			return true
		}
	}
	return false
}

// OrderRequest is the concrete order sent to the broker.
type OrderRequest struct {
	Action      Action      `json:"action"`
	Symbol      string      `json:"symbol"`
	Volume      float64     `json:"volume"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price,omitempty"` // omitted for market orders
	StopLoss    float64     `json:"sl,omitempty"`
	TakeProfit  float64     `json:"tp,omitempty"`
	Deviation   int         `json:"deviation"` // slippage tolerance, points
	Magic       int         `json:"magic"`     // strategy identifier
	Comment     string      `json:"comment"`
	TimeInForce TimeInForce `json:"type_time"`
	FillMode    FillMode    `json:"type_filling"`
}

// OrderResult is the broker's terminal answer to one submission. Immutable
// once returned.
type OrderResult struct {
	Ticket  string          `json:"ticket"`
	Retcode Retcode         `json:"retcode"`
	Price   float64         `json:"price"`  // fill price
	Volume  float64         `json:"volume"` // filled volume
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Transport is a single-connection, stateful broker session. It is not safe
// for concurrent use; the composition root serializes all calls.
type Transport interface {
	// Connect establishes the broker session, applying the transport's own
	// timeout and retry policy. Safe to call once per lifecycle.
	Connect(ctx context.Context) error
	Disconnect() error

	// Symbols returns the broker-recognized instrument names.
	Symbols(ctx context.Context) ([]string, error)

	// SymbolInfo returns fresh metadata for one instrument, or an error
	// when the symbol is unknown to the broker.
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// Send submits one order request. A nil result with a nil error means
	// the broker gave no answer; LastError then holds the transport's
	// explanation, if any.
	Send(ctx context.Context, req *OrderRequest) (*OrderResult, error)

	// LastError returns the most recent transport-level error.
	LastError() error
}
