// Package batch fans a set of strategies out over every symbol in the
// data catalog, scores the results, and assembles the batch report.
package batch

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"backtest-core/internal/backtest"
	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/strategy"
)

// Options tune a batch runner.
type Options struct {
	Workers         int
	Params          backtest.Params
	MinTrades       int
	MaxDDAcceptable float64
}

// DefaultOptions returns the stock batch configuration.
func DefaultOptions() Options {
	return Options{
		Workers:         4,
		Params:          backtest.DefaultParams(),
		MinTrades:       30,
		MaxDDAcceptable: 0.15,
	}
}

// Runner executes strategy x symbol combinations across a worker pool.
type Runner struct {
	opts Options
	bus  *events.Bus
}

// NewRunner creates a batch runner. bus may be nil when nobody listens.
func NewRunner(opts Options, bus *events.Bus) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{opts: opts, bus: bus}
}

type job struct {
	cfg    strategy.Config
	symbol string
}

// RunAll replays every active strategy against every symbol in the
// catalog. Individual run failures are recorded in the report and never
// abort the batch; every finished run publishes a progress event.
// Cancellation stops dispatching new combinations.
func (r *Runner) RunAll(ctx context.Context, configs []strategy.Config, catalog *market.Catalog) (*Report, error) {
	symbols, err := catalog.Symbols()
	if err != nil {
		return nil, err
	}

	active := make([]strategy.Config, 0, len(configs))
	for _, cfg := range configs {
		if cfg.IsActive {
			active = append(active, cfg)
		}
	}

	jobs := make([]job, 0, len(active)*len(symbols))
	for _, cfg := range active {
		for _, sym := range symbols {
			jobs = append(jobs, job{cfg: cfg, symbol: sym})
		}
	}

	batchID := uuid.NewString()
	r.publish(events.EventBatchStarted, events.BatchEvent{BatchID: batchID, Total: len(jobs)})
	log.Printf("🚀 Batch %s: %d strategies x %d symbols = %d runs", batchID, len(active), len(symbols), len(jobs))

	jobCh := make(chan job)
	results := make(chan *backtest.RunResult, len(jobs))

	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
		completed  int
		failed     int
	)
	for w := 0; w < r.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				res := r.runOne(ctx, j, catalog)

				// Publishing under the lock keeps progress events in
				// done-count order.
				progressMu.Lock()
				if res.Status == backtest.StatusCompleted {
					completed++
				} else {
					failed++
				}
				r.publish(events.EventBatchProgress, events.BatchEvent{
					BatchID:   batchID,
					Total:     len(jobs),
					Completed: completed,
					Failed:    failed,
				})
				progressMu.Unlock()

				results <- res
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()

	wg.Wait()
	close(results)

	report := &Report{
		ID:          batchID,
		GeneratedAt: time.Now().UTC(),
		Params:      r.opts.Params,
		Symbols:     symbols,
	}
	for res := range results {
		report.Results = append(report.Results, res)
	}

	// Workers finish in arbitrary order; fix the report order so batches
	// are reproducible.
	sort.Slice(report.Results, func(i, j int) bool {
		a, b := report.Results[i], report.Results[j]
		if a.StrategyID != b.StrategyID {
			return a.StrategyID < b.StrategyID
		}
		return a.Symbol < b.Symbol
	})

	report.Rankings = rankStrategies(report.Results, r.opts)

	r.publish(events.EventBatchCompleted, events.BatchEvent{
		BatchID:   batchID,
		Total:     len(jobs),
		Completed: completed,
		Failed:    failed,
	})
	log.Printf("✅ Batch %s finished: %d completed, %d failed", batchID, completed, failed)
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, j job, catalog *market.Catalog) *backtest.RunResult {
	r.publish(events.EventRunStarted, events.RunEvent{StrategyID: j.cfg.ID, Symbol: j.symbol})

	series, err := catalog.Load(j.symbol)
	if err != nil {
		res := &backtest.RunResult{
			ID:         uuid.NewString(),
			StrategyID: j.cfg.ID,
			Symbol:     j.symbol,
			Status:     backtest.StatusFailed,
			Error:      err.Error(),
		}
		r.publish(events.EventRunFailed, events.RunEvent{RunID: res.ID, StrategyID: j.cfg.ID, Symbol: j.symbol, Error: res.Error})
		return res
	}

	strat, err := strategy.FromConfig(j.cfg)
	if err != nil {
		res := &backtest.RunResult{
			ID:         uuid.NewString(),
			StrategyID: j.cfg.ID,
			Symbol:     j.symbol,
			Status:     backtest.StatusFailed,
			Error:      err.Error(),
		}
		r.publish(events.EventRunFailed, events.RunEvent{RunID: res.ID, StrategyID: j.cfg.ID, Symbol: j.symbol, Error: res.Error})
		return res
	}

	res := backtest.Run(ctx, strat, series, r.opts.Params)
	event := events.EventRunCompleted
	if res.Status == backtest.StatusFailed {
		event = events.EventRunFailed
	}
	r.publish(event, events.RunEvent{RunID: res.ID, StrategyID: j.cfg.ID, Symbol: j.symbol, Status: res.Status, Error: res.Error})
	return res
}

func (r *Runner) publish(e events.Event, payload any) {
	if r.bus != nil {
		r.bus.Publish(e, payload)
	}
}
