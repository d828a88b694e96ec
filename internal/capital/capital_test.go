package capital

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name   string
		want   Policy
		hasErr bool
	}{
		{"flat", PolicyFlat, false},
		{"martingale", PolicyMartingale, false},
		{"anti-martingale", PolicyAntiMartingale, false},
		{"fibonacci", PolicyFibonacci, false},
		{"kelly", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		p, err := ParsePolicy(tt.name)
		if tt.hasErr {
			assert.Error(t, err, tt.name)
		} else {
			require.NoError(t, err, tt.name)
			assert.Equal(t, tt.want, p)
		}
	}
}

func TestAllocate_Flat(t *testing.T) {
	m, err := NewManager(10000, 0.05, PolicyFlat)
	require.NoError(t, err)

	// flat cap is 500, risk amount 25 wins
	alloc, err := m.Allocate(25, 0)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, alloc, 1e-9)
	assert.InDelta(t, 9975.0, m.Available(), 1e-9)

	// risk amount above the cap: the cap wins
	alloc, err = m.Allocate(100000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 9975*0.05, alloc, 1e-9)
}

func TestAllocate_MartingaleEscalates(t *testing.T) {
	m, err := NewManager(10000, 0.05, PolicyMartingale)
	require.NoError(t, err)

	// step 2 multiplies the flat cap by 4
	alloc, err := m.Allocate(100000, 2)
	require.NoError(t, err)
	assert.InDelta(t, 10000*0.05*4, alloc, 1e-9)
}

func TestAllocate_AntiMartingaleDeescalates(t *testing.T) {
	m, err := NewManager(10000, 0.05, PolicyAntiMartingale)
	require.NoError(t, err)

	alloc, err := m.Allocate(100000, 2)
	require.NoError(t, err)
	assert.InDelta(t, 10000*0.05/4, alloc, 1e-9)
}

func TestAllocate_FibonacciScales(t *testing.T) {
	m, err := NewManager(10000, 0.01, PolicyFibonacci)
	require.NoError(t, err)

	// fib[4] = 5
	alloc, err := m.Allocate(100000, 4)
	require.NoError(t, err)
	assert.InDelta(t, 10000*0.01*5, alloc, 1e-9)
}

func TestAllocate_FibonacciStepOverflowFailsLoudly(t *testing.T) {
	m, err := NewManager(10000, 0.05, PolicyFibonacci)
	require.NoError(t, err)

	before := m.Available()
	_, err = m.Allocate(100, FibonacciSteps)
	assert.True(t, terrors.IsKind(err, terrors.KindCapitalExhausted))
	assert.Equal(t, before, m.Available(), "failed allocation must not deduct")
}

func TestAllocate_Bounds(t *testing.T) {
	m, err := NewManager(1000, 0.5, PolicyMartingale)
	require.NoError(t, err)

	// a huge escalation can never allocate more than what is available
	alloc, err := m.Allocate(1e12, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, alloc, 1000.0)
	assert.GreaterOrEqual(t, m.Available(), 0.0)
}

func TestAllocate_ExhaustedIsError(t *testing.T) {
	m, err := NewManager(100, 1.0, PolicyFlat)
	require.NoError(t, err)

	alloc, err := m.Allocate(1e9, 0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, alloc, 1e-9)

	_, err = m.Allocate(50, 0)
	assert.True(t, terrors.IsKind(err, terrors.KindCapitalExhausted))
}

func TestRelease_InverseOfAllocate(t *testing.T) {
	m, err := NewManager(10000, 0.05, PolicyFlat)
	require.NoError(t, err)

	before := m.Available()
	alloc, err := m.Allocate(123.45, 0)
	require.NoError(t, err)

	m.Release(alloc)
	assert.InDelta(t, before, m.Available(), 1e-9)
}

func TestRelease_ClampedToTotal(t *testing.T) {
	m, err := NewManager(1000, 0.1, PolicyFlat)
	require.NoError(t, err)

	m.Release(5000)
	assert.InDelta(t, 1000.0, m.Available(), 1e-9)
}
