package strategy

import (
	"testing"
	"time"

	"backtest-core/internal/market"
)

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestCrossHelpers(t *testing.T) {
	tests := []struct {
		name                 string
		prevFast, prevSlow   float64
		fast, slow           float64
		wantAbove, wantBelow bool
	}{
		{"cross up", 10, 10, 11, 10, true, false},
		{"cross down", 10, 10, 9, 10, false, true},
		{"already above", 11, 10, 12, 10, false, false},
		{"already below", 9, 10, 8, 10, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crossedAbove(tt.prevFast, tt.prevSlow, tt.fast, tt.slow); got != tt.wantAbove {
				t.Fatalf("crossedAbove = %v, want %v", got, tt.wantAbove)
			}
			if got := crossedBelow(tt.prevFast, tt.prevSlow, tt.fast, tt.slow); got != tt.wantBelow {
				t.Fatalf("crossedBelow = %v, want %v", got, tt.wantBelow)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	for _, typ := range Types() {
		s, err := FromConfig(Config{ID: "s1", Type: typ})
		if err != nil {
			t.Fatalf("FromConfig(%s) failed: %v", typ, err)
		}
		if s.ID() != "s1" {
			t.Fatalf("FromConfig(%s) ID = %s, want s1", typ, s.ID())
		}
		if s.Warmup() <= 0 {
			t.Fatalf("FromConfig(%s) Warmup = %d, want positive", typ, s.Warmup())
		}
	}

	if _, err := FromConfig(Config{ID: "x", Type: "martingale"}); err == nil {
		t.Fatal("expected error for unknown strategy type")
	}
}

func TestFromConfigParameterOverride(t *testing.T) {
	s, err := FromConfig(Config{
		ID:   "s1",
		Type: "swing",
		Parameters: map[string]interface{}{
			"fast_ema": 3,
			"slow_sma": 7,
		},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	swing, ok := s.(*SwingStrategy)
	if !ok {
		t.Fatalf("expected *SwingStrategy, got %T", s)
	}
	if swing.params.FastEMA != 3 || swing.params.SlowSMA != 7 {
		t.Fatalf("overrides not applied: %+v", swing.params)
	}
	// Untouched fields keep their defaults.
	if swing.params.StopMult != 1.2 {
		t.Fatalf("StopMult = %v, want default 1.2", swing.params.StopMult)
	}
}

func TestWarmupHolds(t *testing.T) {
	for _, typ := range Types() {
		s, err := FromConfig(Config{ID: "w", Type: typ})
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", typ, err)
		}
		short := barsFromCloses([]float64{100, 101, 102})
		sig, err := s.OnBar(short)
		if err != nil {
			t.Fatalf("%s OnBar failed: %v", typ, err)
		}
		if sig.Action != Hold {
			t.Fatalf("%s emitted %s before warmup", typ, sig.Action)
		}
	}
}

func TestSwingEntryAndExit(t *testing.T) {
	swing := NewSwingStrategy("s1", SwingParams{
		FastEMA:    2,
		SlowSMA:    3,
		RSIPeriod:  2,
		RSIMin:     -1,
		RSIMax:     101,
		ATRPeriod:  2,
		StopMult:   1.2,
		TargetMult: 2.4,
	})

	// Flat closes then a jump forces the fast EMA above the slow SMA.
	up := barsFromCloses([]float64{100, 100, 100, 100, 100, 110})
	sig, err := swing.OnBar(up)
	if err != nil {
		t.Fatalf("OnBar failed: %v", err)
	}
	if sig.Action != EnterLong {
		t.Fatalf("expected EnterLong on cross up, got %s", sig.Action)
	}
	last := up[len(up)-1].Close
	if sig.StopPrice <= 0 || sig.StopPrice >= last {
		t.Fatalf("stop %v not below entry %v", sig.StopPrice, last)
	}
	if sig.TargetPrice <= last {
		t.Fatalf("target %v not above entry %v", sig.TargetPrice, last)
	}

	// A collapse after a rally drives the fast EMA back under the slow SMA.
	down := barsFromCloses([]float64{100, 100, 100, 100, 100, 110, 120, 130, 90})
	sig, err = swing.OnBar(down)
	if err != nil {
		t.Fatalf("OnBar failed: %v", err)
	}
	if sig.Action != ExitLong {
		t.Fatalf("expected ExitLong on cross down, got %s", sig.Action)
	}
}

func TestSwingRSIFilterBlocksEntry(t *testing.T) {
	swing := NewSwingStrategy("s1", SwingParams{
		FastEMA:   2,
		SlowSMA:   3,
		RSIPeriod: 2,
		RSIMin:    -1,
		RSIMax:    50, // straight rise pins RSI at 100, above the cap
		ATRPeriod: 2,
	})
	up := barsFromCloses([]float64{100, 100, 100, 100, 100, 110})
	sig, err := swing.OnBar(up)
	if err != nil {
		t.Fatalf("OnBar failed: %v", err)
	}
	if sig.Action != Hold {
		t.Fatalf("expected RSI filter to block entry, got %s", sig.Action)
	}
}

func TestStrategiesAreDeterministic(t *testing.T) {
	series := market.GenerateSeries(market.SyntheticConfig{Symbol: "DET", Candles: 300, Seed: 9})

	for _, typ := range Types() {
		a, err := FromConfig(Config{ID: "a", Type: typ})
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", typ, err)
		}
		b, err := FromConfig(Config{ID: "a", Type: typ})
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", typ, err)
		}

		for i := range series.Bars {
			window := series.Bars[:i+1]
			sigA, errA := a.OnBar(window)
			sigB, errB := b.OnBar(window)
			if (errA == nil) != (errB == nil) {
				t.Fatalf("%s bar %d: error mismatch %v vs %v", typ, i, errA, errB)
			}
			if sigA != sigB {
				t.Fatalf("%s bar %d: identical instances disagreed: %+v vs %+v", typ, i, sigA, sigB)
			}
		}
	}
}
