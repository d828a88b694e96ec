// Package paper is an in-memory broker transport that fills market orders
// at the quoted price. It backs the -demo run mode and the package tests.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/perceptrader/mt5-trader/internal/broker"
)

// Transport simulates a single-connection broker session. The exported
// failure-injection fields let tests force specific broker behaviors.
type Transport struct {
	mu         sync.Mutex
	connected  bool
	symbols    map[string]*broker.SymbolInfo
	order      []string
	nextTicket int
	lastErr    error

	// NoResponse makes Send return a nil result with a nil error, the way
	// a gateway that timed out after accepting the request behaves.
	NoResponse bool

	// SendErr fails Send at the transport level.
	SendErr error

	// RejectWith forces every submission to be rejected with this retcode.
	RejectWith broker.Retcode
}

func New() *Transport {
	return &Transport{
		symbols:    make(map[string]*broker.SymbolInfo),
		nextTicket: 1000,
	}
}

// AddSymbol registers an instrument with the simulated broker.
func (t *Transport) AddSymbol(info *broker.SymbolInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.symbols[info.Name]; !exists {
		t.order = append(t.order, info.Name)
	}
	t.symbols[info.Name] = info
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *Transport) Symbols(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, errors.New("paper: not connected")
	}
	return append([]string(nil), t.order...), nil
}

func (t *Transport) SymbolInfo(ctx context.Context, symbol string) (*broker.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, errors.New("paper: not connected")
	}
	info, ok := t.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("paper: unknown symbol %s", symbol)
	}
	cp := *info
	return &cp, nil
}

func (t *Transport) Send(ctx context.Context, req *broker.OrderRequest) (*broker.OrderResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		t.lastErr = errors.New("paper: not connected")
		return nil, t.lastErr
	}
	if t.SendErr != nil {
		t.lastErr = t.SendErr
		return nil, t.SendErr
	}
	if t.NoResponse {
		t.lastErr = errors.New("paper: gateway accepted request but gave no answer")
		return nil, nil
	}

	if t.RejectWith != 0 && !t.RejectWith.OK() {
		res := &broker.OrderResult{Retcode: t.RejectWith}
		res.Raw, _ = json.Marshal(res)
		return res, nil
	}

	info, ok := t.symbols[req.Symbol]
	if !ok {
		res := &broker.OrderResult{Retcode: broker.RetcodeInvalidPrice}
		res.Raw, _ = json.Marshal(res)
		return res, nil
	}

	price := req.Price
	if req.Action == broker.ActionDeal {
		// market orders fill at the current quote
		if req.Type == broker.TypeBuy {
			price = info.Ask
		} else {
			price = info.Bid
		}
	}

	t.nextTicket++
	res := &broker.OrderResult{
		Ticket:  fmt.Sprintf("%d", t.nextTicket),
		Retcode: broker.RetcodeDone,
		Price:   price,
		Volume:  req.Volume,
	}
	res.Raw, _ = json.Marshal(res)
	t.lastErr = nil
	return res, nil
}

func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}
