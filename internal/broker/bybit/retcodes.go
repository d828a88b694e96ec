package bybit

import "github.com/perceptrader/mt5-trader/internal/broker"

// Common Bybit API return codes seen on the order path.
const (
	retOK                  = 0
	retInvalidAPIKey       = 10003
	retInvalidSignature    = 10004
	retInvalidTimestamp    = 10005
	retRateLimitExceeded   = 10006
	retOrderNotFound       = 110001
	retInvalidOrderType    = 110004
	retInsufficientBalance = 110007
	retSymbolNotFound      = 110009
	retInvalidQuantity     = 110020
	retInvalidPrice        = 110021
	retMarketClosed        = 110043
	retTradingBanned       = 110061
)

// normalizeRetcode folds a Bybit API return code into the retcode space
// the executor's rejection table understands.
func normalizeRetcode(code int) broker.Retcode {
	switch code {
	case retOK:
		return broker.RetcodeDone
	case retInsufficientBalance:
		return broker.RetcodeNoMoney
	case retMarketClosed:
		return broker.RetcodeMarketClosed
	case retInvalidPrice, retSymbolNotFound:
		return broker.RetcodeInvalidPrice
	case retInvalidQuantity:
		return broker.RetcodeInvalidVolume
	case retInvalidOrderType:
		return broker.RetcodeInvalidFill
	case retTradingBanned:
		return broker.RetcodeTradeDisabled
	default:
		return broker.RetcodeReject
	}
}

// isRetryableCode reports whether a connection-path error code is worth
// retrying with backoff.
func isRetryableCode(code int) bool {
	switch code {
	case retRateLimitExceeded, 500, 502, 503, 504:
		return true
	}
	return false
}
