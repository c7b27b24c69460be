package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"backtest-core/internal/market"
	"backtest-core/internal/portfolio"
	"backtest-core/internal/strategy"
)

// scriptStrategy replays a fixed list of signals, one per OnBar call.
type scriptStrategy struct {
	signals []strategy.Signal
	calls   int
}

func (s *scriptStrategy) ID() string   { return "script" }
func (s *scriptStrategy) Name() string { return "Script" }
func (s *scriptStrategy) Warmup() int  { return 1 }

func (s *scriptStrategy) OnBar(window []market.Bar) (strategy.Signal, error) {
	defer func() { s.calls++ }()
	if s.calls < len(s.signals) {
		return s.signals[s.calls], nil
	}
	return strategy.Signal{Action: strategy.Hold}, nil
}

// tripwireStrategy replays its script and panics once it runs out.
type tripwireStrategy struct {
	scriptStrategy
}

func (s *tripwireStrategy) OnBar(window []market.Bar) (strategy.Signal, error) {
	if s.calls >= len(s.signals) {
		panic("tripwire")
	}
	return s.scriptStrategy.OnBar(window)
}

type panicStrategy struct{}

func (panicStrategy) ID() string   { return "panic" }
func (panicStrategy) Name() string { return "Panic" }
func (panicStrategy) Warmup() int  { return 1 }
func (panicStrategy) OnBar(window []market.Bar) (strategy.Signal, error) {
	panic("boom")
}

func seriesFromCloses(closes []float64) *market.Series {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return &market.Series{Symbol: "TEST", Bars: bars}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestRunForcedCloseAtEnd(t *testing.T) {
	series := seriesFromCloses([]float64{100, 110, 105})
	strat := &scriptStrategy{signals: []strategy.Signal{{Action: strategy.EnterLong}}}
	params := Params{InitialCash: 10000, FeeRate: 0.001, SizeFraction: 0.95, StopFirst: true}

	result := Run(context.Background(), strat, series, params)
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", result.Status, result.Error)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}

	trade := result.Trades[0]
	if trade.ExitReason != portfolio.ExitEndOfData {
		t.Fatalf("exit reason = %s, want %s", trade.ExitReason, portfolio.ExitEndOfData)
	}
	qty := trade.Quantity // floor(10000*0.95/100) = 95
	if qty != 95 {
		t.Fatalf("quantity = %v, want 95", qty)
	}
	wantPnl := (105-100)*qty - 100*qty*0.001 - 105*qty*0.001
	if !almostEqual(trade.PnL, wantPnl) {
		t.Fatalf("pnl = %v, want %v", trade.PnL, wantPnl)
	}

	// Final equity must match capital end and include the exit fee.
	last := result.EquityCurve[len(result.EquityCurve)-1]
	if !almostEqual(last.Equity, 10000+wantPnl) {
		t.Fatalf("final equity = %v, want %v", last.Equity, 10000+wantPnl)
	}
	if !almostEqual(result.Metrics.CapitalEnd, last.Equity) {
		t.Fatalf("capital end %v != final equity %v", result.Metrics.CapitalEnd, last.Equity)
	}
}

func TestRunReassertingLongIsNoop(t *testing.T) {
	series := seriesFromCloses([]float64{100, 101, 102, 103})
	strat := &scriptStrategy{signals: []strategy.Signal{
		{Action: strategy.EnterLong},
		{Action: strategy.EnterLong},
		{Action: strategy.EnterLong},
	}}

	result := Run(context.Background(), strat, series, DefaultParams())
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	// One entry plus the forced close: exactly one round trip.
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if result.Trades[0].EntryPrice != 100 {
		t.Fatalf("entry price = %v, want the first bar's 100", result.Trades[0].EntryPrice)
	}
}

func TestRunProtectiveStopBeforeStrategy(t *testing.T) {
	bars := []market.Bar{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 100, Low: 100, Close: 100, Volume: 10},
		{Timestamp: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), Open: 99, High: 100, Low: 93, Close: 94, Volume: 10},
		{Timestamp: time.Date(2024, 1, 1, 0, 2, 0, 0, time.UTC), Open: 94, High: 95, Low: 93, Close: 94, Volume: 10},
	}
	series := &market.Series{Symbol: "TEST", Bars: bars}

	// Entry at 100 with a 5% stop. The second bar sweeps through it.
	strat := &scriptStrategy{signals: []strategy.Signal{
		{Action: strategy.EnterLong, StopPrice: 95},
	}}

	result := Run(context.Background(), strat, series, Params{InitialCash: 10000, SizeFraction: 0.95, StopFirst: true})
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != portfolio.ExitStop || trade.ExitPrice != 95 {
		t.Fatalf("got exit %v/%s, want 95/%s", trade.ExitPrice, trade.ExitReason, portfolio.ExitStop)
	}

	// The strategy saw bar 0 and bar 2 but sat out the stop bar.
	if strat.calls != 2 {
		t.Fatalf("strategy called %d times, want 2", strat.calls)
	}
}

func TestRunSkipsUnaffordableEntries(t *testing.T) {
	series := seriesFromCloses([]float64{50000, 50000, 50000})
	strat := &scriptStrategy{signals: []strategy.Signal{
		{Action: strategy.EnterLong},
		{Action: strategy.EnterLong},
	}}

	result := Run(context.Background(), strat, series, Params{InitialCash: 100, SizeFraction: 0.95})
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if result.SkippedSignals != 2 {
		t.Fatalf("skipped signals = %d, want 2", result.SkippedSignals)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(result.Trades))
	}
}

func TestRunReversalClosesThenOpens(t *testing.T) {
	series := seriesFromCloses([]float64{100, 100, 120, 120})
	strat := &scriptStrategy{signals: []strategy.Signal{
		{Action: strategy.EnterLong},
		{Action: strategy.Hold},
		{Action: strategy.EnterShort},
	}}

	result := Run(context.Background(), strat, series, Params{InitialCash: 10000, SizeFraction: 0.5})
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	// Long closed on reversal, short force-closed at the end.
	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}
	if result.Trades[0].Side != portfolio.Long || result.Trades[0].ExitPrice != 120 {
		t.Fatalf("first trade = %+v, want long closed at 120", result.Trades[0])
	}
	if result.Trades[1].Side != portfolio.Short {
		t.Fatalf("second trade side = %s, want SHORT", result.Trades[1].Side)
	}
}

func TestRunInvalidParamsFails(t *testing.T) {
	series := seriesFromCloses([]float64{100})
	strat := &scriptStrategy{}

	result := Run(context.Background(), strat, series, Params{InitialCash: -5, SizeFraction: 0.95})
	if result.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.Error == "" {
		t.Fatal("failed run must carry an error message")
	}
}

func TestRunInvalidSeriesFails(t *testing.T) {
	bars := []market.Bar{
		{Timestamp: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), Open: 100, High: 100, Low: 100, Close: 100},
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 100, Low: 100, Close: 100},
	}
	result := Run(context.Background(), &scriptStrategy{}, &market.Series{Symbol: "BAD", Bars: bars}, DefaultParams())
	if result.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
}

func TestRunStrategyPanicFails(t *testing.T) {
	series := seriesFromCloses([]float64{100, 101})
	result := Run(context.Background(), panicStrategy{}, series, DefaultParams())
	if result.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
}

func TestRunFailureKeepsPartialLedger(t *testing.T) {
	series := seriesFromCloses([]float64{100, 110, 120, 130})
	strat := &tripwireStrategy{scriptStrategy{signals: []strategy.Signal{
		{Action: strategy.EnterLong},
		{Action: strategy.ExitLong},
	}}}

	result := Run(context.Background(), strat, series, Params{InitialCash: 10000, SizeFraction: 0.95})
	if result.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}

	// The round trip closed before the blow-up must survive, and the
	// summary has to agree with it.
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade on the failed run, got %d", len(result.Trades))
	}
	if result.Trades[0].ExitPrice != 110 {
		t.Fatalf("exit price = %v, want 110", result.Trades[0].ExitPrice)
	}
	if result.Metrics.Trades != 1 || result.Metrics.Wins != 1 {
		t.Fatalf("metrics ignore the kept ledger: %+v", result.Metrics)
	}
	if len(result.EquityCurve) != 2 {
		t.Fatalf("expected 2 equity points, got %d", len(result.EquityCurve))
	}
}

func TestRunCancellation(t *testing.T) {
	series := seriesFromCloses([]float64{100, 101, 102, 103})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Run(ctx, &scriptStrategy{}, series, DefaultParams())
	if result.Status != StatusIncomplete {
		t.Fatalf("status = %s, want incomplete", result.Status)
	}
	if result.Bars != 0 {
		t.Fatalf("bars = %d, want 0 for an immediately cancelled run", result.Bars)
	}
}

func TestRunDeterminism(t *testing.T) {
	series := market.GenerateSeries(market.SyntheticConfig{Symbol: "DET", Candles: 400, Seed: 11})
	cfg := strategy.Config{ID: "swing-1", Type: "swing"}
	params := DefaultParams()

	run := func() *RunResult {
		strat, err := strategy.FromConfig(cfg)
		if err != nil {
			t.Fatalf("FromConfig: %v", err)
		}
		return Run(context.Background(), strat, series, params)
	}

	a := run()
	b := run()
	if a.Status != StatusCompleted || b.Status != StatusCompleted {
		t.Fatalf("statuses: %s / %s", a.Status, b.Status)
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if a.Trades[i] != b.Trades[i] {
			t.Fatalf("trade %d differs: %+v vs %+v", i, a.Trades[i], b.Trades[i])
		}
	}
	// Serialized form covers the non-comparable sentinel values too.
	am, err := json.Marshal(a.Metrics)
	if err != nil {
		t.Fatalf("marshal metrics: %v", err)
	}
	bm, err := json.Marshal(b.Metrics)
	if err != nil {
		t.Fatalf("marshal metrics: %v", err)
	}
	if !bytes.Equal(am, bm) {
		t.Fatalf("metrics differ: %s vs %s", am, bm)
	}
}

func TestRunEquityIdentity(t *testing.T) {
	series := market.GenerateSeries(market.SyntheticConfig{Symbol: "EQ", Candles: 300, Seed: 3})
	strat, err := strategy.FromConfig(strategy.Config{ID: "fast-1", Type: "fast"})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	result := Run(context.Background(), strat, series, DefaultParams())
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if len(result.EquityCurve) != len(series.Bars) {
		t.Fatalf("equity curve has %d points for %d bars", len(result.EquityCurve), len(series.Bars))
	}

	// With everything settled, final equity is starting cash plus the sum
	// of net trade pnl.
	sum := 0.0
	for _, tr := range result.Trades {
		sum += tr.PnL
	}
	final := result.EquityCurve[len(result.EquityCurve)-1].Equity
	if !almostEqual(final, result.Params.InitialCash+sum) {
		t.Fatalf("final equity %v != initial %v + pnl sum %v", final, result.Params.InitialCash, sum)
	}
}
