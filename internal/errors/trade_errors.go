package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a trading failure. Every error that crosses a component
// boundary in this system carries exactly one Kind.
type Kind string

const (
	// KindInsufficientHistory - risk calculation lacks data (empty PnL
	// sample). Sizing is skipped for the bar, not fatal.
	KindInsufficientHistory Kind = "INSUFFICIENT_HISTORY"

	// KindCapitalExhausted - allocation computed as zero or the policy step
	// ran out of bounds. Trade skipped.
	KindCapitalExhausted Kind = "CAPITAL_EXHAUSTED"

	// KindMarketClosed - probe reports the instrument not tradeable. Trade
	// skipped, never retried automatically.
	KindMarketClosed Kind = "MARKET_CLOSED"

	// KindInvalidOrderSpec - intent rejected before any broker call
	// (missing price for pending order, bad quantity, no supported fill
	// mode). Fatal for the intent, not the session.
	KindInvalidOrderSpec Kind = "INVALID_ORDER_SPEC"

	// KindTransportNoResponse - broker transport returned no result.
	KindTransportNoResponse Kind = "TRANSPORT_NO_RESPONSE"

	// KindBrokerRejected - broker explicitly rejected the order with a
	// retcode. Reason narrows it down.
	KindBrokerRejected Kind = "BROKER_REJECTED"
)

// RejectReason is the sub-kind of a KindBrokerRejected error.
type RejectReason string

const (
	ReasonAutoTradingDisabled    RejectReason = "AUTOTRADING_DISABLED"
	ReasonTradingDisabled        RejectReason = "TRADING_DISABLED"
	ReasonMarketClosedServerSide RejectReason = "MARKET_CLOSED_SERVER"
	ReasonInsufficientFunds      RejectReason = "INSUFFICIENT_FUNDS"
	ReasonInvalidPrice           RejectReason = "INVALID_PRICE"
	ReasonInvalidFillMode        RejectReason = "INVALID_FILL_MODE"
	ReasonVolumeTooSmall         RejectReason = "VOLUME_TOO_SMALL"
	ReasonRejected               RejectReason = "REJECTED"
)

// TradeError is a categorized trading error with component context.
type TradeError struct {
	Kind       Kind
	Reason     RejectReason // set only for KindBrokerRejected
	Component  string
	Symbol     string
	Retcode    int // raw broker retcode, 0 when not broker-originated
	Message    string
	NextOpen   time.Time // market-closed errors: next session open, zero if unknown
	Underlying error
}

func (e *TradeError) Error() string {
	msg := fmt.Sprintf("[%s:%s]", e.Kind, e.Component)
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.Retcode != 0 {
		msg += fmt.Sprintf(" retcode=%d", e.Retcode)
	}
	msg += ": " + e.Message
	if e.Underlying != nil {
		msg += fmt.Sprintf(": %v", e.Underlying)
	}
	return msg
}

func (e *TradeError) Unwrap() error {
	return e.Underlying
}

// Retryable reports whether the same chain may be attempted again on a
// later bar. It never authorizes resending the identical request.
func (e *TradeError) Retryable() bool {
	switch e.Kind {
	case KindInvalidOrderSpec:
		return false
	case KindBrokerRejected:
		switch e.Reason {
		case ReasonInvalidFillMode, ReasonVolumeTooSmall, ReasonInvalidPrice:
			return false
		}
		return true
	default:
		return true
	}
}

// IsKind reports whether err (or anything it wraps) is a TradeError of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var te *TradeError
	if stderrors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// ReasonOf extracts the rejection reason from a broker-rejected error, or
// "" when err is anything else.
func ReasonOf(err error) RejectReason {
	var te *TradeError
	if stderrors.As(err, &te) && te.Kind == KindBrokerRejected {
		return te.Reason
	}
	return ""
}

func NewInsufficientHistory(component, message string) *TradeError {
	return &TradeError{Kind: KindInsufficientHistory, Component: component, Message: message}
}

func NewCapitalExhausted(component, message string) *TradeError {
	return &TradeError{Kind: KindCapitalExhausted, Component: component, Message: message}
}

func NewMarketClosed(symbol, message string, nextOpen time.Time) *TradeError {
	return &TradeError{
		Kind:      KindMarketClosed,
		Component: "market",
		Symbol:    symbol,
		Message:   message,
		NextOpen:  nextOpen,
	}
}

func NewInvalidOrderSpec(symbol, message string) *TradeError {
	return &TradeError{
		Kind:      KindInvalidOrderSpec,
		Component: "order",
		Symbol:    symbol,
		Message:   message,
	}
}

func NewTransportNoResponse(symbol string, underlying error) *TradeError {
	return &TradeError{
		Kind:       KindTransportNoResponse,
		Component:  "executor",
		Symbol:     symbol,
		Message:    "broker transport returned no result",
		Underlying: underlying,
	}
}

func NewBrokerRejected(symbol string, retcode int, reason RejectReason, message string) *TradeError {
	return &TradeError{
		Kind:      KindBrokerRejected,
		Reason:    reason,
		Component: "executor",
		Symbol:    symbol,
		Retcode:   retcode,
		Message:   message,
	}
}
