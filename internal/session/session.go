// Package session drives the trading loop: per symbol, per signal bar,
// it sizes the position, reserves capital, checks the market, builds the
// order and submits it. One failed order never aborts the rest of the
// portfolio.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/perceptrader/mt5-trader/internal/broker"
	"github.com/perceptrader/mt5-trader/internal/capital"
	"github.com/perceptrader/mt5-trader/internal/config"
	terrors "github.com/perceptrader/mt5-trader/internal/errors"
	"github.com/perceptrader/mt5-trader/internal/executor"
	"github.com/perceptrader/mt5-trader/internal/logger"
	"github.com/perceptrader/mt5-trader/internal/market"
	"github.com/perceptrader/mt5-trader/internal/monitoring"
	"github.com/perceptrader/mt5-trader/internal/notifications"
	"github.com/perceptrader/mt5-trader/internal/order"
	"github.com/perceptrader/mt5-trader/internal/risk"
	"github.com/perceptrader/mt5-trader/pkg/types"
)

// SignalSource supplies the ordered signal bars for a symbol.
type SignalSource interface {
	Signals(ctx context.Context, symbol string) ([]types.Signal, error)
}

// SliceSource is a SignalSource backed by pre-generated signals per symbol.
type SliceSource map[string][]types.Signal

func (s SliceSource) Signals(ctx context.Context, symbol string) ([]types.Signal, error) {
	return s[symbol], nil
}

// Outcome records what happened to one signal bar.
type Outcome struct {
	Symbol    string
	Timestamp time.Time
	Signal    int
	Side      broker.Side
	Quantity  float64
	Allocated float64
	Ticket    string
	Price     float64
	State     executor.State
	Err       error
}

// Session wires the sizing, allocation, market-state and execution
// components together and owns the trading loop.
type Session struct {
	cfg        *config.Config
	transport  broker.Transport
	riskMgr    *risk.Manager
	capitalMgr *capital.Manager
	probe      *market.Probe
	translator *order.Translator
	exec       *executor.Executor
	signals    SignalSource
	log        *logger.Logger
	health     *monitoring.HealthChecker
	notifier   notifications.Notifier

	// steps tracks the allocation policy step per symbol. A failed
	// submission advances the step, a fill resets it.
	steps    map[string]int
	outcomes []Outcome
}

// New builds a session from configuration and a connected transport.
func New(cfg *config.Config, transport broker.Transport, signals SignalSource, log *logger.Logger) (*Session, error) {
	riskMgr, err := risk.NewManager(cfg.Balance, cfg.VarConf, cfg.CvarConf)
	if err != nil {
		return nil, err
	}

	policy, err := capital.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	capitalMgr, err := capital.NewManager(cfg.Balance, cfg.MaxAllocPerTrade, policy)
	if err != nil {
		return nil, err
	}

	probe := market.NewProbe(transport, nil)

	return &Session{
		cfg:        cfg,
		transport:  transport,
		riskMgr:    riskMgr,
		capitalMgr: capitalMgr,
		probe:      probe,
		translator: order.NewTranslator(cfg.Deviation, cfg.Magic, cfg.Comment),
		exec:       executor.New(transport, probe),
		signals:    signals,
		log:        log,
		notifier:   notifications.Noop{},
		steps:      make(map[string]int),
	}, nil
}

// SetNotifier replaces the default no-op notifier.
func (s *Session) SetNotifier(n notifications.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// SetHealthChecker attaches a health checker updated on fills and errors.
func (s *Session) SetHealthChecker(h *monitoring.HealthChecker) {
	s.health = h
}

// Outcomes returns the per-bar records accumulated so far.
func (s *Session) Outcomes() []Outcome {
	return s.outcomes
}

// Capital returns the capital manager, shared with reporting.
func (s *Session) Capital() *capital.Manager {
	return s.capitalMgr
}

// Run iterates every configured symbol's signal stream in order.
// Cancellation is honored between bars, never mid-submission, so an
// order is never left half-sent.
func (s *Session) Run(ctx context.Context) error {
	for _, symbol := range s.cfg.Symbols {
		bars, err := s.signals.Signals(ctx, symbol)
		if err != nil {
			s.log.LogError("signal source", err)
			monitoring.RecordError("signal_source")
			continue
		}

		for _, bar := range bars {
			if err := ctx.Err(); err != nil {
				return err
			}
			if bar.Value == 0 {
				continue
			}
			s.processBar(ctx, symbol, bar)
		}
	}
	return nil
}

// processBar runs the size -> allocate -> check -> translate -> submit
// chain for one non-zero signal. Every failure is recorded and absorbed
// here; the loop always moves on.
func (s *Session) processBar(ctx context.Context, symbol string, bar types.Signal) {
	side := broker.SideBuy
	if bar.Value < 0 {
		side = broker.SideSell
	}

	out := Outcome{
		Symbol:    symbol,
		Timestamp: bar.Timestamp,
		Signal:    bar.Value,
		Side:      side,
	}
	defer func() {
		s.outcomes = append(s.outcomes, out)
		monitoring.UpdateAvailableCapital(s.capitalMgr.Available())
	}()

	size, err := s.riskMgr.PositionSize(s.cfg.SlPips, s.cfg.PipValue)
	if err != nil {
		s.fail(&out, "position sizing", err)
		return
	}
	monitoring.ObservePositionSize(symbol, size)

	step := s.steps[symbol]
	required := size * s.cfg.PipValue
	allocated, err := s.capitalMgr.Allocate(required, step)
	if err != nil {
		if terrors.IsKind(err, terrors.KindCapitalExhausted) {
			// Step overflow or drained capital; start the policy cycle over.
			s.steps[symbol] = 0
		}
		s.fail(&out, "capital allocation", err)
		return
	}
	out.Allocated = allocated
	out.Quantity = allocated / s.cfg.PipValue

	info, err := s.transport.SymbolInfo(ctx, symbol)
	if err != nil {
		s.capitalMgr.Release(allocated)
		s.fail(&out, "symbol metadata", err)
		return
	}
	monitoring.UpdatePrice(symbol, info.Bid)

	intent := order.Intent{
		Symbol:   symbol,
		Side:     side,
		Quantity: out.Quantity,
		Kind:     broker.KindMarket,
	}
	req, err := s.translator.Translate(intent, info)
	if err != nil {
		s.capitalMgr.Release(allocated)
		s.fail(&out, "order translation", err)
		return
	}

	res, err := s.exec.Submit(ctx, req)
	out.State = s.exec.LastState()
	if err != nil {
		s.capitalMgr.Release(allocated)
		s.steps[symbol]++
		s.recordSubmitFailure(&out, err)
		return
	}

	s.steps[symbol] = 0
	out.Ticket = res.Ticket
	out.Price = res.Price
	monitoring.RecordOrder(symbol, string(side), "done")
	if s.health != nil {
		s.health.RecordOrder(res.Price)
	}
	s.log.LogOrderExecution(symbol, string(side), res.Ticket, res.Volume, res.Price, allocated, step)
	s.log.LogCapitalStatus(s.capitalMgr.Available(), s.capitalMgr.Total(), s.steps[symbol])
	s.notifier.SendAlert("success",
		formatFill(symbol, string(side), res.Volume, res.Price))
}

// fail records a pre-submission failure (sizing, allocation, metadata,
// translation) for one bar. The outcome is marked skipped, never with a
// state from an earlier submission.
func (s *Session) fail(out *Outcome, stage string, err error) {
	out.Err = err
	out.State = executor.StateSkipped
	s.log.LogError(stage, err)
	monitoring.RecordError(stage)
	monitoring.RecordOrder(out.Symbol, string(out.Side), "skipped")
}

// recordSubmitFailure classifies a broker-path failure for logging and
// metrics. Market-closed skips are routine and logged at status level.
func (s *Session) recordSubmitFailure(out *Outcome, err error) {
	out.Err = err

	switch {
	case terrors.IsKind(err, terrors.KindMarketClosed):
		var nextOpen time.Time
		var te *terrors.TradeError
		if stderrors.As(err, &te) {
			nextOpen = te.NextOpen
		}
		s.log.LogMarketClosed(out.Symbol, nextOpen)
		monitoring.RecordOrder(out.Symbol, string(out.Side), "market_closed")

	case terrors.IsKind(err, terrors.KindBrokerRejected):
		s.log.LogOrderFailure(out.Symbol, string(out.Side), out.Quantity, err)
		monitoring.RecordOrder(out.Symbol, string(out.Side), "rejected")
		monitoring.RecordReject(out.Symbol, string(terrors.ReasonOf(err)))
		s.notifier.SendAlert("error", err.Error())

	case terrors.IsKind(err, terrors.KindTransportNoResponse):
		s.log.LogOrderFailure(out.Symbol, string(out.Side), out.Quantity, err)
		monitoring.RecordOrder(out.Symbol, string(out.Side), "no_response")
		if s.health != nil {
			s.health.RecordError(err.Error())
		}
		s.notifier.SendAlert("warning", err.Error())

	default:
		s.log.LogOrderFailure(out.Symbol, string(out.Side), out.Quantity, err)
		monitoring.RecordOrder(out.Symbol, string(out.Side), "failed")
	}
}

func formatFill(symbol, side string, volume, price float64) string {
	return fmt.Sprintf("%s %s filled: %.2f @ %.5f", side, symbol, volume, price)
}
