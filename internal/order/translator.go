// Package order maps abstract trade intents into concrete broker order
// requests, negotiating a fill mode the symbol actually supports.
package order

import (
	"fmt"
	"math"

	"github.com/perceptrader/mt5-trader/internal/broker"
	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

// Intent is one abstract trade, created per signal bar and consumed once.
// A zero Price means "no price attached"; that is only legal for market
// intents.
type Intent struct {
	Symbol     string
	Side       broker.Side
	Quantity   float64
	Kind       broker.OrderKind
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

// fillPriority is the negotiation order across the symbol's advertised
// modes.
var fillPriority = []broker.FillMode{broker.FillFOK, broker.FillIOC, broker.FillReturn}

// Translator builds broker requests with the session's fixed routing
// attributes (slippage tolerance, magic number, comment).
type Translator struct {
	deviation int
	magic     int
	comment   string
}

func NewTranslator(deviation, magic int, comment string) *Translator {
	return &Translator{deviation: deviation, magic: magic, comment: comment}
}

// Translate validates the intent against the symbol metadata and produces
// the wire request. All failures here are invalid-order-spec errors raised
// before any broker call.
func (t *Translator) Translate(intent Intent, info *broker.SymbolInfo) (*broker.OrderRequest, error) {
	if intent.Quantity <= 0 {
		return nil, terrors.NewInvalidOrderSpec(intent.Symbol,
			fmt.Sprintf("quantity must be positive, got %.4f", intent.Quantity))
	}
	if intent.Side != broker.SideBuy && intent.Side != broker.SideSell {
		return nil, terrors.NewInvalidOrderSpec(intent.Symbol,
			fmt.Sprintf("unknown side %q", intent.Side))
	}

	fill, err := negotiateFill(intent.Symbol, info)
	if err != nil {
		return nil, err
	}

	volume, err := normalizeVolume(intent.Symbol, intent.Quantity, info)
	if err != nil {
		return nil, err
	}

	req := &broker.OrderRequest{
		Symbol:      intent.Symbol,
		Volume:      volume,
		Deviation:   t.deviation,
		Magic:       t.magic,
		Comment:     t.comment,
		TimeInForce: broker.TimeGTC,
		FillMode:    fill,
	}

	switch intent.Kind {
	case broker.KindMarket:
		// no price: the broker quotes at execution
		req.Action = broker.ActionDeal
		if intent.Side == broker.SideBuy {
			req.Type = broker.TypeBuy
		} else {
			req.Type = broker.TypeSell
		}
	case broker.KindLimit, broker.KindStop:
		if intent.Price == 0 {
			return nil, terrors.NewInvalidOrderSpec(intent.Symbol,
				fmt.Sprintf("%s order requires a price", intent.Kind))
		}
		req.Action = broker.ActionPending
		req.Type = pendingType(intent.Kind, intent.Side)
		req.Price = roundTo(intent.Price, info.Digits)
	default:
		return nil, terrors.NewInvalidOrderSpec(intent.Symbol,
			fmt.Sprintf("unknown order kind %q", intent.Kind))
	}

	if intent.StopLoss != 0 {
		req.StopLoss = roundTo(intent.StopLoss, info.Digits)
	}
	if intent.TakeProfit != 0 {
		req.TakeProfit = roundTo(intent.TakeProfit, info.Digits)
	}

	return req, nil
}

// negotiateFill picks the highest-priority fill mode the symbol supports.
func negotiateFill(symbol string, info *broker.SymbolInfo) (broker.FillMode, error) {
	for _, mode := range fillPriority {
		if info.SupportsFill(mode) {
			return mode, nil
		}
	}
	return "", terrors.NewInvalidOrderSpec(symbol, "symbol advertises no supported fill mode")
}

func pendingType(kind broker.OrderKind, side broker.Side) broker.OrderType {
	if kind == broker.KindLimit {
		if side == broker.SideBuy {
			return broker.TypeBuyLimit
		}
		return broker.TypeSellLimit
	}
	if side == broker.SideBuy {
		return broker.TypeBuyStop
	}
	return broker.TypeSellStop
}

// normalizeVolume snaps the quantity onto the symbol's lot grid and checks
// the broker minimum. Symbols that advertise no step fall back to the
// two-decimal lot convention.
func normalizeVolume(symbol string, qty float64, info *broker.SymbolInfo) (float64, error) {
	if info.VolumeStep > 0 {
		steps := math.Round(qty / info.VolumeStep)
		qty = roundTo(steps*info.VolumeStep, decimalsOf(info.VolumeStep))
	} else {
		qty = roundTo(qty, 2)
	}
	if info.VolumeMin > 0 && qty < info.VolumeMin {
		return 0, terrors.NewInvalidOrderSpec(symbol,
			fmt.Sprintf("volume %v below broker minimum %v", qty, info.VolumeMin))
	}
	return qty, nil
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

func decimalsOf(step float64) int {
	d := 0
	for step < 1 && d < 10 {
		step *= 10
		d++
	}
	return d
}
