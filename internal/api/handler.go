package api

import (
	"net/http"
	"time"

	"backtest-core/internal/batch"
	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/persistence"
	"backtest-core/internal/report"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
	"backtest-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the backtest engine.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Catalog   *market.Catalog
	Store     *persistence.RunStore
	Reports   *report.Writer
	Runner    *batch.Runner
	Configs   []strategy.Config
	Metrics   *monitor.SystemMetrics
	Cfg       *config.Config
	JWTSecret string
}

func NewServer(bus *events.Bus, database *db.Database, catalog *market.Catalog, store *persistence.RunStore, reports *report.Writer, runner *batch.Runner, configs []strategy.Config, metrics *monitor.SystemMetrics, cfg *config.Config) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())         // Panic recovery (first)
	r.Use(RequestIDMiddleware())  // Request ID tracking
	r.Use(RequestLogger(metrics)) // Request logging (after ID is set)
	r.Use(RateLimitMiddleware())  // Rate limiting
	// Security headers handled by Nginx
	r.Use(TimeoutMiddleware(30 * time.Second)) // Request timeout (30s)
	r.Use(CORSMiddleware())                    // CORS (last before routes)

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Catalog:   catalog,
		Store:     store,
		Reports:   reports,
		Runner:    runner,
		Configs:   configs,
		Metrics:   metrics,
		Cfg:       cfg,
		JWTSecret: cfg.JWTSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.getStrategies)
			protected.GET("/symbols", s.getSymbols)

			// Backtest execution
			protected.POST("/run", s.runBacktest)
			protected.POST("/run-all", s.runAll)

			// Run history
			protected.GET("/runs", s.listRuns)
			protected.GET("/runs/:id", s.getRun)

			// Reports on disk
			protected.GET("/reports", s.listReports)
			protected.GET("/reports/:filename", s.getReport)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
