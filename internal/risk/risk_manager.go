// Package risk sizes positions under a tail-risk budget. The budget is the
// balance fraction falling outside the CVaR confidence tail, a conservative
// fixed-point approximation used when no PnL history is supplied; the
// historical VaR/CVaR estimators are available when one is.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

// ErrCannotSize signals that sizing is impossible for this bar (zero
// stop distance or pip value). The caller skips the trade; this is not a
// session failure.
var ErrCannotSize = errors.New("risk: cannot size position, zero stop distance or pip value")

// Manager computes position sizes from account balance and a tail-risk
// budget. Immutable after construction.
type Manager struct {
	balance  float64
	varConf  float64
	cvarConf float64
}

// NewManager validates the confidence levels and returns a sizing manager.
func NewManager(balance, varConf, cvarConf float64) (*Manager, error) {
	if balance < 0 {
		return nil, fmt.Errorf("risk: negative account balance %.2f", balance)
	}
	if varConf < 0 || varConf > 1 {
		return nil, fmt.Errorf("risk: var confidence %.4f outside [0,1]", varConf)
	}
	if cvarConf < 0 || cvarConf > 1 {
		return nil, fmt.Errorf("risk: cvar confidence %.4f outside [0,1]", cvarConf)
	}
	return &Manager{balance: balance, varConf: varConf, cvarConf: cvarConf}, nil
}

// RiskAmount is the currency amount at risk per trade under the fixed-point
// CVaR budget: balance * (1 - confidence).
func (m *Manager) RiskAmount() float64 {
	return m.balance * (1 - m.cvarConf)
}

// PositionSize converts the risk amount into a size given the stop-loss
// distance in pips and the pip value. Returns ErrCannotSize when either
// divisor is zero or negative.
func (m *Manager) PositionSize(stopLossPips, pipValue float64) (float64, error) {
	if stopLossPips <= 0 || pipValue <= 0 {
		return 0, ErrCannotSize
	}
	return m.RiskAmount() / (stopLossPips * pipValue), nil
}

// ValueAtRisk returns the (1-confidence)-percentile of the supplied PnL
// sample. An empty series yields NaN and an insufficient-history error.
func (m *Manager) ValueAtRisk(pnl []float64) (float64, error) {
	if len(pnl) == 0 {
		return math.NaN(), terrors.NewInsufficientHistory("risk", "empty PnL series for VaR")
	}
	return percentile(pnl, (1-m.varConf)*100), nil
}

// ConditionalVaR returns the mean of all samples at or below the VaR
// threshold. Degenerates to NaN with an insufficient-history error when no
// sample falls in the tail.
func (m *Manager) ConditionalVaR(pnl []float64) (float64, error) {
	v, err := m.ValueAtRisk(pnl)
	if err != nil {
		return math.NaN(), err
	}
	var sum float64
	var n int
	for _, x := range pnl {
		if x <= v {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN(), terrors.NewInsufficientHistory("risk", "no samples at or below VaR threshold")
	}
	return sum / float64(n), nil
}

// percentile computes the p-th percentile (0..100) with linear
// interpolation between closest ranks.
func percentile(sample []float64, p float64) float64 {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
