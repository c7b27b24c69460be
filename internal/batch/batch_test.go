package batch

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"backtest-core/internal/backtest"
	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/metrics"
	"backtest-core/internal/strategy"
)

func completedRun(strategyID, symbol string, profit, winRate, maxDD float64, trades int) *backtest.RunResult {
	return &backtest.RunResult{
		ID:         strategyID + "-" + symbol,
		StrategyID: strategyID,
		Symbol:     symbol,
		Status:     backtest.StatusCompleted,
		Metrics: metrics.Summary{
			Profit:      profit,
			TotalReturn: profit / 10000,
			WinRate:     winRate,
			MaxDrawdown: maxDD,
			Trades:      trades,
		},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestAssetScoreFormula(t *testing.T) {
	opts := DefaultOptions()
	res := completedRun("s1", "AAA", 500, 0.6, 0.10, 40)

	s := assetScore(res, opts)
	if !s.Scored {
		t.Fatal("expected run with 40 trades to be scored")
	}
	// Profit carries full weight; win rate and drawdown only nudge it.
	want := 500 + 0.3*0.6 - 1.2*0.10
	if !almostEqual(s.Score, want) {
		t.Fatalf("score = %v, want %v", s.Score, want)
	}
	if !almostEqual(s.Profit, 500) {
		t.Fatalf("profit = %v, want 500", s.Profit)
	}
}

func TestAssetScoreSkipsThinAndFailedRuns(t *testing.T) {
	opts := DefaultOptions()

	thin := completedRun("s1", "AAA", 500, 1.0, 0, 5)
	if s := assetScore(thin, opts); s.Scored {
		t.Fatalf("run with %d trades must be unscored", thin.Metrics.Trades)
	}

	failed := completedRun("s1", "BBB", 500, 1.0, 0, 100)
	failed.Status = backtest.StatusFailed
	if s := assetScore(failed, opts); s.Scored {
		t.Fatal("failed run must be unscored")
	}
}

func TestRankStrategies(t *testing.T) {
	opts := DefaultOptions()
	results := []*backtest.RunResult{
		// good: two profitable assets.
		completedRun("good", "AAA", 200, 0.6, 0.05, 40),
		completedRun("good", "BBB", 100, 0.5, 0.05, 40),
		// shaky: one positive, one negative asset draws a penalty.
		completedRun("shaky", "AAA", 50, 0.4, 0.02, 40),
		completedRun("shaky", "BBB", -300, 0.2, 0.10, 40),
		// thin: never enough trades, stays at zero.
		completedRun("thin", "AAA", 500, 0.9, 0.01, 3),
	}

	ranked := rankStrategies(results, opts)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 strategies, got %d", len(ranked))
	}
	if ranked[0].StrategyID != "good" {
		t.Fatalf("top strategy = %s, want good", ranked[0].StrategyID)
	}
	if !ranked[0].Approved {
		t.Fatal("good strategy should be approved")
	}

	// Hand-check the shaky score: mean of the two asset scores minus the
	// penalty for the negative one.
	aScore := 50 + 0.3*0.4 - 1.2*0.02
	bScore := -300 + 0.3*0.2 - 1.2*0.10
	wantShaky := (aScore+bScore)/2 - 0.5*math.Abs(bScore)
	var shaky *StrategyScore
	for i := range ranked {
		if ranked[i].StrategyID == "shaky" {
			shaky = &ranked[i]
		}
	}
	if shaky == nil {
		t.Fatal("shaky strategy missing from ranking")
	}
	if !almostEqual(shaky.Score, wantShaky) {
		t.Fatalf("shaky score = %v, want %v", shaky.Score, wantShaky)
	}
	if shaky.Approved {
		t.Fatal("negative score must not be approved")
	}

	// The thin strategy has no scored assets.
	var thin *StrategyScore
	for i := range ranked {
		if ranked[i].StrategyID == "thin" {
			thin = &ranked[i]
		}
	}
	if thin == nil || thin.Score != 0 || thin.Approved {
		t.Fatalf("thin strategy should rank unscored: %+v", thin)
	}
}

func TestRankStrategiesDrawdownGate(t *testing.T) {
	opts := DefaultOptions()
	// Positive score but drawdown beyond the acceptable band.
	results := []*backtest.RunResult{
		completedRun("risky", "AAA", 600, 0.7, 0.30, 40),
	}
	ranked := rankStrategies(results, opts)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 strategy, got %d", len(ranked))
	}
	if ranked[0].Score <= 0 {
		t.Fatalf("risky score = %v, want positive", ranked[0].Score)
	}
	if ranked[0].Approved {
		t.Fatal("drawdown above the acceptable band must block approval")
	}
}

func writeTestSeries(t *testing.T, dir string, symbols []string) {
	t.Helper()
	for i, sym := range symbols {
		s := market.GenerateSeries(market.SyntheticConfig{Symbol: sym, Candles: 400, Seed: int64(42 + i)})
		if err := market.WriteCSV(s, filepath.Join(dir, sym+".csv")); err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
	}
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	writeTestSeries(t, dir, []string{"AAA", "BBB"})
	catalog := market.NewCatalog(dir)

	configs := []strategy.Config{
		{ID: "swing-1", Name: "Swing", Type: "swing", IsActive: true},
		{ID: "fast-1", Name: "Fast", Type: "fast", IsActive: true},
		{ID: "off", Name: "Disabled", Type: "spot", IsActive: false},
		{ID: "broken", Name: "Broken", Type: "nope", IsActive: true},
	}

	opts := DefaultOptions()
	opts.Workers = 3
	runner := NewRunner(opts, nil)

	report, err := runner.RunAll(context.Background(), configs, catalog)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	// 3 active strategies x 2 symbols; the disabled one is skipped.
	if len(report.Results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(report.Results))
	}

	failures := 0
	for _, res := range report.Results {
		if res.StrategyID == "off" {
			t.Fatal("disabled strategy must not run")
		}
		if res.StrategyID == "broken" {
			if res.Status != backtest.StatusFailed {
				t.Fatalf("broken strategy status = %s, want failed", res.Status)
			}
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("expected 2 failed runs, got %d", failures)
	}

	// Results are sorted by strategy then symbol for reproducibility.
	for i := 1; i < len(report.Results); i++ {
		a, b := report.Results[i-1], report.Results[i]
		if a.StrategyID > b.StrategyID || (a.StrategyID == b.StrategyID && a.Symbol > b.Symbol) {
			t.Fatalf("results out of order at %d: %s/%s after %s/%s", i, b.StrategyID, b.Symbol, a.StrategyID, a.Symbol)
		}
	}

	if len(report.Rankings) != 3 {
		t.Fatalf("expected 3 ranked strategies, got %d", len(report.Rankings))
	}
	if report.ID == "" || report.GeneratedAt.IsZero() {
		t.Fatal("report missing id or timestamp")
	}
}

func TestRunAllPublishesProgress(t *testing.T) {
	dir := t.TempDir()
	writeTestSeries(t, dir, []string{"AAA", "BBB"})
	catalog := market.NewCatalog(dir)

	bus := events.NewBus()
	progress, unsub := bus.Subscribe(events.EventBatchProgress, 32)
	defer unsub()

	configs := []strategy.Config{
		{ID: "swing-1", Name: "Swing", Type: "swing", IsActive: true},
		{ID: "broken", Name: "Broken", Type: "nope", IsActive: true},
	}

	opts := DefaultOptions()
	opts.Workers = 2
	runner := NewRunner(opts, bus)
	if _, err := runner.RunAll(context.Background(), configs, catalog); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	// Every finished run reports progress before RunAll returns.
	var last events.BatchEvent
	seen := 0
drain:
	for {
		select {
		case msg := <-progress:
			ev, ok := msg.(events.BatchEvent)
			if !ok {
				t.Fatalf("unexpected payload %T", msg)
			}
			last = ev
			seen++
		default:
			break drain
		}
	}
	if seen != 4 {
		t.Fatalf("expected 4 progress events, got %d", seen)
	}
	if last.Total != 4 || last.Completed+last.Failed != 4 {
		t.Fatalf("final progress event inconsistent: %+v", last)
	}
	if last.Failed != 2 {
		t.Fatalf("expected 2 failures reported, got %d", last.Failed)
	}
	if last.BatchID == "" {
		t.Fatal("progress event missing batch id")
	}
}
