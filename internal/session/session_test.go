package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perceptrader/mt5-trader/internal/broker"
	"github.com/perceptrader/mt5-trader/internal/broker/paper"
	"github.com/perceptrader/mt5-trader/internal/config"
	terrors "github.com/perceptrader/mt5-trader/internal/errors"
	"github.com/perceptrader/mt5-trader/internal/executor"
	"github.com/perceptrader/mt5-trader/internal/logger"
)

// fullWeek keeps the instrument open around the clock so tests do not
// depend on the wall clock.
func fullWeek() map[time.Weekday][]broker.SessionWindow {
	sessions := make(map[time.Weekday][]broker.SessionWindow)
	for d := time.Sunday; d <= time.Saturday; d++ {
		sessions[d] = []broker.SessionWindow{{Start: 0, End: 24 * 3600}}
	}
	return sessions
}

func eurusd() *broker.SymbolInfo {
	return &broker.SymbolInfo{
		Name:       "EURUSD",
		Digits:     5,
		Point:      0.00001,
		Bid:        1.10000,
		Ask:        1.10050,
		TradeMode:  broker.TradeModeFull,
		FillModes:  []broker.FillMode{broker.FillIOC},
		Sessions:   fullWeek(),
		VolumeMin:  0.01,
		VolumeStep: 0.01,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Symbols:          []string{"EURUSD"},
		Balance:          10000,
		VarConf:          0.95,
		CvarConf:         0.95,
		SlPips:           20,
		PipValue:         10,
		MaxAllocPerTrade: 0.05,
		Policy:           "flat",
		Deviation:        config.DefaultDeviation,
		Magic:            config.DefaultMagic,
		Comment:          config.DefaultComment,
	}
}

func newTestSession(t *testing.T, cfg *config.Config, tr *paper.Transport, src SignalSource) *Session {
	t.Helper()
	require.NoError(t, tr.Connect(context.Background()))
	sess, err := New(cfg, tr, src, logger.NewNop())
	require.NoError(t, err)
	return sess
}

func oneBuyBar() SliceSource {
	return SliceSource{"EURUSD": {
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: 1},
	}}
}

func TestRunEndToEndMarketBuy(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	sess := newTestSession(t, testConfig(), tr, oneBuyBar())

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 1)
	out := outcomes[0]

	require.NoError(t, out.Err)
	assert.Equal(t, executor.StateDone, out.State)
	assert.Equal(t, broker.SideBuy, out.Side)
	assert.InDelta(t, 25.0, out.Allocated, 1e-9)
	assert.InDelta(t, 2.5, out.Quantity, 1e-9)
	assert.NotEmpty(t, out.Ticket)
	assert.InDelta(t, 1.10050, out.Price, 1e-9) // buys fill at the ask

	assert.InDelta(t, 9975.0, sess.Capital().Available(), 1e-9)
}

func TestRunSellSignal(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	src := SliceSource{"EURUSD": {
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: -1},
	}}
	sess := newTestSession(t, testConfig(), tr, src)

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, broker.SideSell, outcomes[0].Side)
	assert.InDelta(t, 1.10000, outcomes[0].Price, 1e-9) // sells fill at the bid
}

func TestRunSkipsFlatSignals(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	src := SliceSource{"EURUSD": {
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: 0},
		{Timestamp: time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC), Value: 0},
	}}
	sess := newTestSession(t, testConfig(), tr, src)

	require.NoError(t, sess.Run(context.Background()))
	assert.Empty(t, sess.Outcomes())
	assert.InDelta(t, 10000.0, sess.Capital().Available(), 1e-9)
}

func TestRunNoResponseContinuesAndReleasesCapital(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	tr.NoResponse = true
	src := SliceSource{"EURUSD": {
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: 1},
		{Timestamp: time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC), Value: 1},
	}}
	sess := newTestSession(t, testConfig(), tr, src)

	// The loop absorbs the failures and finishes without error.
	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		assert.True(t, terrors.IsKind(out.Err, terrors.KindTransportNoResponse))
		assert.Equal(t, executor.StateNoResponse, out.State)
	}
	assert.InDelta(t, 10000.0, sess.Capital().Available(), 1e-9)
}

func TestRunRejectedReleasesCapital(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	tr.RejectWith = broker.RetcodeNoMoney
	sess := newTestSession(t, testConfig(), tr, oneBuyBar())

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 1)
	assert.True(t, terrors.IsKind(outcomes[0].Err, terrors.KindBrokerRejected))
	assert.Equal(t, terrors.ReasonInsufficientFunds, terrors.ReasonOf(outcomes[0].Err))
	assert.InDelta(t, 10000.0, sess.Capital().Available(), 1e-9)
}

func TestRunMarketClosedSkipsWithoutSending(t *testing.T) {
	info := eurusd()
	info.Sessions = map[time.Weekday][]broker.SessionWindow{} // closed all week
	tr := paper.New()
	tr.AddSymbol(info)
	tr.SendErr = assert.AnError // would fail loudly if the order reached Send
	sess := newTestSession(t, testConfig(), tr, oneBuyBar())

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 1)
	assert.True(t, terrors.IsKind(outcomes[0].Err, terrors.KindMarketClosed))
	assert.InDelta(t, 10000.0, sess.Capital().Available(), 1e-9)
}

func TestRunMartingaleStepAdvancesAfterFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Policy = "martingale"
	cfg.CvarConf = 0.90 // risk 1000
	cfg.SlPips = 1      // required = risk / sl_pips = 1000

	tr := paper.New()
	tr.AddSymbol(eurusd())
	bars := oneBuyBar()
	sess := newTestSession(t, cfg, tr, bars)

	tr.RejectWith = broker.RetcodeRequote
	require.NoError(t, sess.Run(context.Background()))

	tr.RejectWith = 0
	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 2)
	// step 0: min(10000*0.05*1, 1000) = 500, released on rejection
	assert.InDelta(t, 500.0, outcomes[0].Allocated, 1e-9)
	// step 1: min(10000*0.05*2, 1000) = 1000
	assert.InDelta(t, 1000.0, outcomes[1].Allocated, 1e-9)
	assert.InDelta(t, 9000.0, sess.Capital().Available(), 1e-9)
}

func TestRunHonorsCancellationBetweenBars(t *testing.T) {
	tr := paper.New()
	tr.AddSymbol(eurusd())
	sess := newTestSession(t, testConfig(), tr, oneBuyBar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sess.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.Outcomes())
}

func TestRunUnknownSymbolMetadataFailure(t *testing.T) {
	tr := paper.New() // no symbols registered
	sess := newTestSession(t, testConfig(), tr, oneBuyBar())

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
	assert.Equal(t, executor.StateSkipped, outcomes[0].State)
	assert.InDelta(t, 10000.0, sess.Capital().Available(), 1e-9)
}

func TestRunSkippedBarDoesNotInheritPriorState(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{"EURUSD", "GBPUSD"} // GBPUSD unknown to the broker

	tr := paper.New()
	tr.AddSymbol(eurusd())
	src := SliceSource{
		"EURUSD": {{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: 1}},
		"GBPUSD": {{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), Value: 1}},
	}
	sess := newTestSession(t, cfg, tr, src)

	require.NoError(t, sess.Run(context.Background()))

	outcomes := sess.Outcomes()
	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, executor.StateDone, outcomes[0].State)

	// The failed metadata lookup never reached the executor; its outcome
	// must not carry the done state left over from the previous fill.
	require.Error(t, outcomes[1].Err)
	assert.Equal(t, executor.StateSkipped, outcomes[1].State)
}
