package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"backtest-core/internal/backtest"
	"backtest-core/internal/events"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/db"

	"github.com/gin-gonic/gin"
)

type runRequest struct {
	StrategyID   string         `json:"strategy_id" binding:"required,min=1"`
	Symbol       string         `json:"symbol" binding:"required,min=1"`
	Parameters   map[string]any `json:"parameters"`
	InitialCash  *float64       `json:"initial_cash"`
	FeeRate      *float64       `json:"fee_rate"`
	SizeFraction *float64       `json:"size_fraction"`
}

type listRunsQuery struct {
	StrategyID string `form:"strategy_id"`
	Symbol     string `form:"symbol"`
	Limit      int    `form:"limit"`
}

func (q *listRunsQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

// runSummary is the compact row shape returned by the run list endpoint.
// Full trades and equity curves stay behind the per-run endpoint.
type runSummary struct {
	ID           string    `json:"id"`
	StrategyID   string    `json:"strategy_id"`
	StrategyName string    `json:"strategy_name"`
	Symbol       string    `json:"symbol"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Bars         int       `json:"bars"`
	Trades       int       `json:"n_trades"`
	TotalReturn  float64   `json:"total_return"`
	WinRate      float64   `json:"win_rate"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	ProfitFactor string    `json:"profit_factor"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func (s *Server) findConfig(id string) (strategy.Config, bool) {
	for _, cfg := range s.Configs {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return strategy.Config{}, false
}

// runParams builds engine parameters from server defaults plus any
// per-request overrides.
func (s *Server) runParams(req runRequest) backtest.Params {
	params := backtest.Params{
		InitialCash:  s.Cfg.InitialCash,
		FeeRate:      s.Cfg.FeeRate,
		SizeFraction: s.Cfg.SizeFraction,
		StopFirst:    s.Cfg.StopFirst,
	}
	if req.InitialCash != nil {
		params.InitialCash = *req.InitialCash
	}
	if req.FeeRate != nil {
		params.FeeRate = *req.FeeRate
	}
	if req.SizeFraction != nil {
		params.SizeFraction = *req.SizeFraction
	}
	return params
}

// getStrategies returns the configured strategies and supported types.
func (s *Server) getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategies": s.Configs,
		"types":      strategy.Types(),
	})
}

// getSymbols returns every symbol available in the data catalog.
func (s *Server) getSymbols(c *gin.Context) {
	infos, err := s.Catalog.Describe()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, infos)
}

// runBacktest executes one strategy against one symbol and persists the
// result before responding.
func (s *Server) runBacktest(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	cfg, ok := s.findConfig(req.StrategyID)
	if !ok {
		respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", "unknown strategy id")
		return
	}
	if len(req.Parameters) > 0 {
		merged := make(map[string]any, len(cfg.Parameters)+len(req.Parameters))
		for k, v := range cfg.Parameters {
			merged[k] = v
		}
		for k, v := range req.Parameters {
			merged[k] = v
		}
		cfg.Parameters = merged
	}

	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETERS", err.Error())
		return
	}

	series, err := s.Catalog.Load(req.Symbol)
	if err != nil {
		respondError(c, http.StatusNotFound, "SYMBOL_NOT_FOUND", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.Cfg.RunTimeout)
	defer cancel()

	s.publish(events.EventRunStarted, events.RunEvent{StrategyID: cfg.ID, Symbol: req.Symbol})

	start := time.Now()
	res := backtest.Run(ctx, strat, series, s.runParams(req))
	elapsed := time.Since(start)

	if s.Metrics != nil {
		s.Metrics.RecordRun(res.Status == backtest.StatusFailed, res.Bars, elapsed)
	}
	event := events.EventRunCompleted
	if res.Status == backtest.StatusFailed {
		event = events.EventRunFailed
	}
	s.publish(event, events.RunEvent{RunID: res.ID, StrategyID: cfg.ID, Symbol: req.Symbol, Status: res.Status, Error: res.Error})

	if err := s.Store.SaveRun(context.Background(), res); err != nil {
		log.Printf("❌ persist run %s: %v", res.ID, err)
	}
	if _, err := s.Reports.SaveRun(res); err != nil {
		log.Printf("❌ write report for run %s: %v", res.ID, err)
	}

	c.JSON(http.StatusOK, res)
}

// runAll kicks off a full batch in the background. Progress streams over
// the websocket; results land in the database and the reports directory.
func (s *Server) runAll(c *gin.Context) {
	symbols, err := s.Catalog.Symbols()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}

	active := 0
	for _, cfg := range s.Configs {
		if cfg.IsActive {
			active++
		}
	}
	if active == 0 || len(symbols) == 0 {
		respondError(c, http.StatusBadRequest, "NOTHING_TO_RUN", "no active strategies or no symbols in catalog")
		return
	}

	go func() {
		rep, err := s.Runner.RunAll(context.Background(), s.Configs, s.Catalog)
		if err != nil {
			log.Printf("❌ batch failed: %v", err)
			return
		}
		for _, res := range rep.Results {
			if s.Metrics != nil {
				s.Metrics.RecordRun(res.Status == backtest.StatusFailed, res.Bars, res.FinishedAt.Sub(res.StartedAt))
			}
			if err := s.Store.SaveRun(context.Background(), res); err != nil {
				log.Printf("❌ persist run %s: %v", res.ID, err)
			}
		}
		if err := s.Reports.SaveBatch(rep); err != nil {
			log.Printf("❌ write batch report %s: %v", rep.ID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"strategies": active,
		"symbols":    len(symbols),
		"runs":       active * len(symbols),
	})
}

// listRuns returns stored run summaries, newest first.
func (s *Server) listRuns(c *gin.Context) {
	var q listRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	rows, err := s.DB.ListRuns(c.Request.Context(), q.StrategyID, q.Symbol, q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	out := make([]runSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, runSummary{
			ID:           r.ID,
			StrategyID:   r.StrategyID,
			StrategyName: r.StrategyName,
			Symbol:       r.Symbol,
			Status:       r.Status,
			Error:        r.Error,
			Bars:         r.Bars,
			Trades:       r.Trades,
			TotalReturn:  r.TotalReturn,
			WinRate:      r.WinRate,
			MaxDrawdown:  r.MaxDrawdown,
			ProfitFactor: r.ProfitFactor,
			StartedAt:    r.StartedAt,
			FinishedAt:   r.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// getRun returns one stored run with trades and equity curve.
func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	res, err := s.Store.LoadRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", "run not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// listReports returns stored report files, newest first.
func (s *Server) listReports(c *gin.Context) {
	infos, err := s.Reports.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "REPORTS_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, infos)
}

// getReport streams one stored report file back as raw JSON.
func (s *Server) getReport(c *gin.Context) {
	name := c.Param("filename")
	data, err := s.Reports.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			respondError(c, http.StatusNotFound, "REPORT_NOT_FOUND", "report not found")
		default:
			respondError(c, http.StatusBadRequest, "INVALID_REPORT_NAME", "invalid report name")
		}
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) getSystemStatus(c *gin.Context) {
	symbols, err := s.Catalog.Symbols()
	if err != nil {
		symbols = nil
	}
	active := 0
	for _, cfg := range s.Configs {
		if cfg.IsActive {
			active++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"data_dir":          s.Catalog.Dir(),
		"reports_dir":       s.Reports.Dir(),
		"symbols":           len(symbols),
		"strategies":        len(s.Configs),
		"active_strategies": active,
		"workers":           s.Cfg.MaxWorkers,
		"server_time":       time.Now().UTC(),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"system": s.Metrics.GetSnapshot(),
		"writer": s.Store.WriterMetrics(),
	})
}

func (s *Server) publish(e events.Event, payload any) {
	if s.Bus != nil {
		s.Bus.Publish(e, payload)
	}
}
