package broker

import (
	"fmt"

	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

// Retcode is the numeric status a broker returns for a submitted order.
// The values follow the MetaTrader trade-server convention, which every
// transport normalizes its native codes into.
type Retcode int

const (
	RetcodeRequote            Retcode = 10004
	RetcodeReject             Retcode = 10006
	RetcodePlaced             Retcode = 10008
	RetcodeDone               Retcode = 10009
	RetcodeDonePartial        Retcode = 10010
	RetcodeInvalidVolume      Retcode = 10014
	RetcodeInvalidPrice       Retcode = 10015
	RetcodeTradeDisabled      Retcode = 10017
	RetcodeMarketClosed       Retcode = 10018
	RetcodeNoMoney            Retcode = 10019
	RetcodePriceOff           Retcode = 10021
	RetcodeServerDisablesAT   Retcode = 10026
	RetcodeClientDisablesAT   Retcode = 10027
	RetcodeInvalidFill        Retcode = 10030
)

// OK reports whether the retcode is a success: the order was executed,
// partially executed, or accepted as a pending order.
func (r Retcode) OK() bool {
	switch r {
	case RetcodeDone, RetcodeDonePartial, RetcodePlaced:
		return true
	}
	return false
}

// rejection is one row of the retcode table: the taxonomy sub-kind plus a
// human-actionable message. Adding a broker retcode is a one-line entry.
type rejection struct {
	Reason  terrors.RejectReason
	Message string
}

var rejections = map[Retcode]rejection{
	RetcodeServerDisablesAT: {terrors.ReasonAutoTradingDisabled, "algorithmic trading is disabled on the trade server for this account"},
	RetcodeClientDisablesAT: {terrors.ReasonAutoTradingDisabled, "algorithmic trading is disabled in the client terminal; enable Algo Trading"},
	RetcodeTradeDisabled:    {terrors.ReasonTradingDisabled, "trading is disabled for this account or instrument"},
	RetcodeMarketClosed:     {terrors.ReasonMarketClosedServerSide, "the market is closed for this symbol; wait for the next session"},
	RetcodeNoMoney:          {terrors.ReasonInsufficientFunds, "not enough money to execute the request; reduce volume or free margin"},
	RetcodeInvalidPrice:     {terrors.ReasonInvalidPrice, "invalid price in the request; refresh quotes and rebuild the order"},
	RetcodePriceOff:         {terrors.ReasonInvalidPrice, "no quotes to process the request; price is off"},
	RetcodeInvalidFill:      {terrors.ReasonInvalidFillMode, "unsupported filling mode; renegotiate against the symbol's advertised modes"},
	RetcodeInvalidVolume:    {terrors.ReasonVolumeTooSmall, "invalid volume in the request; check the symbol's minimum lot and lot step"},
}

// RejectError maps a non-success retcode to its typed rejection. Unmapped
// retcodes fall into the generic rejected category carrying the raw code.
func RejectError(symbol string, r Retcode) *terrors.TradeError {
	if rej, ok := rejections[r]; ok {
		return terrors.NewBrokerRejected(symbol, int(r), rej.Reason, rej.Message)
	}
	return terrors.NewBrokerRejected(symbol, int(r), terrors.ReasonRejected,
		fmt.Sprintf("request rejected by broker (retcode %d)", int(r)))
}
