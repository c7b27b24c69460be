package batch

import (
	"math"
	"sort"
	"time"

	"backtest-core/internal/backtest"
)

// Score formula weights.
const (
	winRateWeight  = 0.3
	drawdownWeight = 1.2
	penaltyWeight  = 0.5
)

// AssetScore grades one strategy on one symbol. Runs with too few trades
// or a failed status carry Scored=false and do not affect the ranking.
type AssetScore struct {
	Symbol      string  `json:"symbol"`
	RunID       string  `json:"run_id"`
	Scored      bool    `json:"scored"`
	Score       float64 `json:"score"`
	Trades      int     `json:"n_trades"`
	Profit      float64 `json:"profit"`
	Return      float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// StrategyScore ranks one strategy across all symbols it ran on.
type StrategyScore struct {
	StrategyID   string       `json:"strategy_id"`
	StrategyName string       `json:"strategy_name"`
	Score        float64      `json:"score"`
	Approved     bool         `json:"approved"`
	MeanDrawdown float64      `json:"mean_drawdown"`
	Assets       []AssetScore `json:"assets"`
}

// Report is the output of one full batch.
type Report struct {
	ID          string                `json:"id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Params      backtest.Params       `json:"params"`
	Symbols     []string              `json:"symbols"`
	Rankings    []StrategyScore       `json:"rankings"`
	Results     []*backtest.RunResult `json:"results"`
}

// assetScore grades a single run: absolute profit rewarded, win rate adds
// a small bonus, drawdown costs more than it earns.
func assetScore(res *backtest.RunResult, opts Options) AssetScore {
	s := AssetScore{
		Symbol:      res.Symbol,
		RunID:       res.ID,
		Trades:      res.Metrics.Trades,
		Profit:      res.Metrics.Profit,
		Return:      res.Metrics.TotalReturn,
		WinRate:     res.Metrics.WinRate,
		MaxDrawdown: res.Metrics.MaxDrawdown,
	}
	if res.Status != backtest.StatusCompleted || res.Metrics.Trades < opts.MinTrades {
		return s
	}
	s.Scored = true
	s.Score = s.Profit + winRateWeight*s.WinRate - drawdownWeight*s.MaxDrawdown
	return s
}

// rankStrategies folds per-run scores into a descending strategy ranking.
// A strategy's score is the mean of its scored assets minus a penalty for
// every negative one; approval additionally requires the mean drawdown to
// stay inside the acceptable band.
func rankStrategies(results []*backtest.RunResult, opts Options) []StrategyScore {
	byStrategy := make(map[string]*StrategyScore)
	order := []string{}

	for _, res := range results {
		entry, ok := byStrategy[res.StrategyID]
		if !ok {
			entry = &StrategyScore{StrategyID: res.StrategyID, StrategyName: res.StrategyName}
			byStrategy[res.StrategyID] = entry
			order = append(order, res.StrategyID)
		}
		if entry.StrategyName == "" {
			entry.StrategyName = res.StrategyName
		}
		entry.Assets = append(entry.Assets, assetScore(res, opts))
	}

	ranked := make([]StrategyScore, 0, len(order))
	for _, id := range order {
		entry := byStrategy[id]

		sum, penalty, dd := 0.0, 0.0, 0.0
		scored := 0
		for _, a := range entry.Assets {
			if !a.Scored {
				continue
			}
			scored++
			sum += a.Score
			dd += a.MaxDrawdown
			if a.Score < 0 {
				penalty += math.Abs(a.Score)
			}
		}
		if scored > 0 {
			mean := sum / float64(scored)
			entry.Score = mean - penaltyWeight*penalty
			entry.MeanDrawdown = dd / float64(scored)
			entry.Approved = entry.Score >= 0 && entry.MeanDrawdown <= opts.MaxDDAcceptable
		}
		ranked = append(ranked, *entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
