// Package executor submits translated orders to the broker and interprets
// the outcome. One submission moves Built -> Sent -> {Done, Rejected,
// NoResponse}; the request is sent exactly once, because resending an
// identical order risks duplicate fills. Retry policy lives with the
// session, not here.
package executor

import (
	"context"
	"fmt"

	"github.com/perceptrader/mt5-trader/internal/broker"
	terrors "github.com/perceptrader/mt5-trader/internal/errors"
	"github.com/perceptrader/mt5-trader/internal/market"
)

// State is the submission lifecycle position.
type State int

const (
	StateBuilt State = iota
	StateSent
	StateDone
	StateRejected
	StateNoResponse

	// StateSkipped marks a request that failed before submission and was
	// never handed to the executor.
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSent:
		return "sent"
	case StateDone:
		return "done"
	case StateRejected:
		return "rejected"
	case StateNoResponse:
		return "no_response"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Executor owns the submission path for one broker connection.
type Executor struct {
	transport broker.Transport
	probe     *market.Probe
	lastState State
}

func New(transport broker.Transport, probe *market.Probe) *Executor {
	return &Executor{transport: transport, probe: probe, lastState: StateBuilt}
}

// LastState reports where the most recent submission ended.
func (e *Executor) LastState() State {
	return e.lastState
}

// Submit sends one built request and returns the broker's terminal answer,
// or a typed failure. Market orders are pre-checked against the market
// probe and fail fast without reaching the broker when the market is not
// tradeable.
func (e *Executor) Submit(ctx context.Context, req *broker.OrderRequest) (*broker.OrderResult, error) {
	e.lastState = StateBuilt

	if req.Action == broker.ActionDeal {
		st := e.probe.Check(ctx, req.Symbol)
		if !st.Tradeable {
			return nil, terrors.NewMarketClosed(req.Symbol,
				fmt.Sprintf("market not tradeable: %s", st.Reason), st.NextOpen)
		}
	}

	res, err := e.transport.Send(ctx, req)
	e.lastState = StateSent

	if err != nil {
		e.lastState = StateNoResponse
		return nil, terrors.NewTransportNoResponse(req.Symbol, err)
	}
	if res == nil {
		e.lastState = StateNoResponse
		return nil, terrors.NewTransportNoResponse(req.Symbol, e.transport.LastError())
	}

	if !res.Retcode.OK() {
		e.lastState = StateRejected
		return nil, broker.RejectError(req.Symbol, res.Retcode)
	}

	e.lastState = StateDone
	return res, nil
}
