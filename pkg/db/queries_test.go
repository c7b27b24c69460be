package db

import (
	"context"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func sampleRun(id, strategyID, symbol string, startedAt time.Time) Run {
	return Run{
		ID:           id,
		StrategyID:   strategyID,
		StrategyName: "Swing",
		Symbol:       symbol,
		Status:       "completed",
		Bars:         500,
		Params:       `{"initial_cash":10000}`,
		CapitalStart: 10000,
		CapitalEnd:   10500,
		Profit:       500,
		TotalReturn:  0.05,
		Trades:       12,
		WinRate:      0.5,
		MaxDrawdown:  0.03,
		ProfitFactor: "1.8",
		Sharpe:       0.2,
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(time.Second),
	}
}

func TestRunRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := database.InsertRun(ctx, sampleRun("r1", "swing-1", "BTCUSDT", started)); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	r, err := database.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.StrategyID != "swing-1" || r.Symbol != "BTCUSDT" || r.Trades != 12 {
		t.Fatalf("round trip lost fields: %+v", r)
	}
	if r.ProfitFactor != "1.8" {
		t.Fatalf("profit factor = %q, want 1.8", r.ProfitFactor)
	}

	if _, err := database.GetRun(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("GetRun(missing) err = %v, want ErrNotFound", err)
	}
}

func TestListRunsFilters(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		sampleRun("r1", "swing-1", "AAA", base),
		sampleRun("r2", "swing-1", "BBB", base.Add(time.Minute)),
		sampleRun("r3", "fast-1", "AAA", base.Add(2*time.Minute)),
	}
	for _, r := range runs {
		if err := database.InsertRun(ctx, r); err != nil {
			t.Fatalf("InsertRun(%s): %v", r.ID, err)
		}
	}

	all, err := database.ListRuns(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	// Newest first.
	if all[0].ID != "r3" {
		t.Fatalf("first run = %s, want r3", all[0].ID)
	}

	bySymbol, err := database.ListRuns(ctx, "", "AAA", 0)
	if err != nil {
		t.Fatalf("ListRuns by symbol: %v", err)
	}
	if len(bySymbol) != 2 {
		t.Fatalf("expected 2 AAA runs, got %d", len(bySymbol))
	}

	byStrategy, err := database.ListRuns(ctx, "fast-1", "", 0)
	if err != nil {
		t.Fatalf("ListRuns by strategy: %v", err)
	}
	if len(byStrategy) != 1 || byStrategy[0].ID != "r3" {
		t.Fatalf("unexpected strategy filter result: %+v", byStrategy)
	}
}

func TestRunTradesAndEquity(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := database.InsertRun(ctx, sampleRun("r1", "swing-1", "AAA", base)); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	trades := []RunTrade{
		{RunID: "r1", Side: "LONG", Qty: 10, EntryPrice: 100, EntryTime: base, ExitPrice: 110, ExitTime: base.Add(time.Hour), PnL: 99, Fees: 1, ExitReason: "target"},
		{RunID: "r1", Side: "LONG", Qty: 5, EntryPrice: 110, EntryTime: base.Add(2 * time.Hour), ExitPrice: 105, ExitTime: base.Add(3 * time.Hour), PnL: -26, Fees: 1, ExitReason: "stop"},
	}
	for _, tr := range trades {
		if err := database.InsertRunTrade(ctx, tr); err != nil {
			t.Fatalf("InsertRunTrade: %v", err)
		}
	}

	got, err := database.ListRunTrades(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRunTrades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].ExitReason != "target" || got[1].ExitReason != "stop" {
		t.Fatalf("trades out of order: %+v", got)
	}

	for i := 0; i < 3; i++ {
		p := EquityPoint{RunID: "r1", TS: base.Add(time.Duration(i) * time.Minute), Equity: 10000 + float64(i)*10}
		if err := database.InsertEquityPoint(ctx, p); err != nil {
			t.Fatalf("InsertEquityPoint: %v", err)
		}
	}
	curve, err := database.ListEquityPoints(ctx, "r1")
	if err != nil {
		t.Fatalf("ListEquityPoints: %v", err)
	}
	if len(curve) != 3 || curve[2].Equity != 10020 {
		t.Fatalf("unexpected curve: %+v", curve)
	}
}

func TestUserRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	u := User{ID: "u1", Email: "Trader@Example.com", PasswordHash: "hash"}
	if err := database.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Lookup is case-insensitive because emails are stored lowercased.
	got, err := database.GetUserByEmail(ctx, "trader@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("unexpected user: %+v", got)
	}

	missing, err := database.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail(missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown email, got %+v", missing)
	}
}
