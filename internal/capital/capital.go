// Package capital allocates a bounded fraction of available capital per
// trade under a selectable scaling policy, and tracks available capital as
// allocations are reserved and released.
package capital

import (
	"fmt"
	"math"
	"sync"

	terrors "github.com/perceptrader/mt5-trader/internal/errors"
)

// Policy is the capital scaling policy. Unknown policy names are a
// construction-time error, never a silent fallback.
type Policy int

const (
	PolicyFlat Policy = iota
	PolicyMartingale
	PolicyAntiMartingale
	PolicyFibonacci
)

var policyNames = map[Policy]string{
	PolicyFlat:           "flat",
	PolicyMartingale:     "martingale",
	PolicyAntiMartingale: "anti-martingale",
	PolicyFibonacci:      "fibonacci",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy resolves a configured policy name.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("capital: unknown allocation policy %q", name)
}

// fibSequence bounds the fibonacci escalation. A step past the end is a
// caller programming error and fails loudly.
var fibSequence = [...]float64{1, 1, 2, 3, 5, 8, 13}

// FibonacciSteps is the number of valid fibonacci steps before the caller
// must reset.
const FibonacciSteps = len(fibSequence)

// Manager tracks total and available capital. Allocation deducts
// immediately (pessimistic reservation); Release restores. Safe for use
// from multiple symbol loops.
type Manager struct {
	mu        sync.Mutex
	total     float64
	available float64
	maxAlloc  float64
	policy    Policy
}

// NewManager creates a capital manager with the full capital available.
func NewManager(totalCapital, maxAllocPerTrade float64, policy Policy) (*Manager, error) {
	if totalCapital < 0 {
		return nil, fmt.Errorf("capital: negative total capital %.2f", totalCapital)
	}
	if maxAllocPerTrade <= 0 || maxAllocPerTrade > 1 {
		return nil, fmt.Errorf("capital: max allocation per trade %.4f outside (0,1]", maxAllocPerTrade)
	}
	if _, ok := policyNames[policy]; !ok {
		return nil, fmt.Errorf("capital: invalid policy %d", int(policy))
	}
	return &Manager{
		total:     totalCapital,
		available: totalCapital,
		maxAlloc:  maxAllocPerTrade,
		policy:    policy,
	}, nil
}

// Allocate reserves capital for one trade. The flat cap
// available*maxAlloc is scaled by the policy at the given step, capped by
// riskAmount and by what is actually available, then deducted. A computed
// allocation of zero is a capital-exhausted error, as is a fibonacci step
// past the sequence end.
func (m *Manager) Allocate(riskAmount float64, step int) (float64, error) {
	if step < 0 {
		return 0, terrors.NewCapitalExhausted("capital", fmt.Sprintf("negative policy step %d", step))
	}

	scale, err := m.scaleFor(step)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alloc := math.Min(m.available*m.maxAlloc*scale, riskAmount)
	if alloc > m.available {
		alloc = m.available
	}
	if alloc <= 0 {
		return 0, terrors.NewCapitalExhausted("capital",
			fmt.Sprintf("allocation computed as %.2f with %.2f available", alloc, m.available))
	}

	m.available -= alloc
	return alloc, nil
}

func (m *Manager) scaleFor(step int) (float64, error) {
	switch m.policy {
	case PolicyMartingale:
		return math.Pow(2, float64(step)), nil
	case PolicyAntiMartingale:
		return math.Pow(2, -float64(step)), nil
	case PolicyFibonacci:
		if step >= FibonacciSteps {
			return 0, terrors.NewCapitalExhausted("capital",
				fmt.Sprintf("fibonacci step %d past end of sequence (max %d)", step, FibonacciSteps-1))
		}
		return fibSequence[step], nil
	default:
		return 1, nil
	}
}

// Release restores a previously allocated amount. Releasing exactly what
// was allocated is the caller's discipline; the result is still clamped so
// available never exceeds total.
func (m *Manager) Release(amount float64) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available += amount
	if m.available > m.total {
		m.available = m.total
	}
}

// Available returns the capital not currently reserved.
func (m *Manager) Available() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Total returns the total capital under management.
func (m *Manager) Total() float64 {
	return m.total
}

// Policy returns the configured scaling policy.
func (m *Manager) Policy() Policy {
	return m.policy
}
