package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(-1, 0.95, 0.95)
	assert.Error(t, err)

	_, err = NewManager(1000, 1.5, 0.95)
	assert.Error(t, err)

	_, err = NewManager(1000, 0.95, -0.1)
	assert.Error(t, err)

	m, err := NewManager(1000, 0.95, 0.95)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestRiskAmount_BudgetIsTailFraction(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 500.0, m.RiskAmount(), 1e-9)
}

func TestRiskAmount_NonNegative(t *testing.T) {
	for _, conf := range []float64{0, 0.5, 0.95, 1} {
		m, err := NewManager(10000, conf, conf)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.RiskAmount(), 0.0)
	}
}

func TestPositionSize(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	// risk 500 over a 20-pip stop at $10/pip
	size, err := m.PositionSize(20, 10)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, size, 1e-9)
}

func TestPositionSize_ZeroDivisorSkips(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	_, err = m.PositionSize(0, 10)
	assert.ErrorIs(t, err, ErrCannotSize)

	_, err = m.PositionSize(20, 0)
	assert.ErrorIs(t, err, ErrCannotSize)
}

func TestValueAtRisk_EmptySeries(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	v, err := m.ValueAtRisk(nil)
	assert.True(t, math.IsNaN(v))
	assert.True(t, terrors.IsKind(err, terrors.KindInsufficientHistory))
}

func TestValueAtRisk_Percentile(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	pnl := []float64{-100, -50, -10, 0, 10, 20, 30, 40, 50, 60, 70}
	v, err := m.ValueAtRisk(pnl)
	require.NoError(t, err)

	// 5th percentile of the sample sits in the loss tail
	assert.Less(t, v, -10.0)
}

func TestConditionalVaR_MeanOfTail(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	pnl := []float64{-100, -50, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	cvar, err := m.ConditionalVaR(pnl)
	require.NoError(t, err)

	v, err := m.ValueAtRisk(pnl)
	require.NoError(t, err)

	// CVaR is an average of outcomes at or below VaR, so it cannot exceed it
	assert.LessOrEqual(t, cvar, v)
}

func TestConditionalVaR_EmptySeries(t *testing.T) {
	m, err := NewManager(10000, 0.95, 0.95)
	require.NoError(t, err)

	cvar, err := m.ConditionalVaR([]float64{})
	assert.True(t, math.IsNaN(cvar))
	assert.True(t, terrors.IsKind(err, terrors.KindInsufficientHistory))
}
