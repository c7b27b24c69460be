package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest-core/internal/api"
	"backtest-core/internal/backtest"
	"backtest-core/internal/batch"
	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/persistence"
	"backtest-core/internal/report"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
	"backtest-core/pkg/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("🚀 backtest core starting on port %s", cfg.Port)
	log.Printf("using database at %s", cfg.DBPath)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	bus := events.NewBus()
	catalog := market.NewCatalog(cfg.DataDir)

	// Load strategies from YAML config and sync to DB
	configs, err := strategy.LoadConfig(cfg.StrategyConfig)
	if err != nil {
		log.Fatalf("failed to load strategy config: %v", err)
	}
	if err := strategy.SyncConfigToDB(database.DB, configs); err != nil {
		log.Printf("⚠️ strategy sync failed: %v", err)
	}
	log.Printf("loaded %d strategies from %s", len(configs), cfg.StrategyConfig)

	if symbols, err := catalog.Symbols(); err != nil {
		log.Printf("⚠️ data catalog not readable: %v", err)
	} else {
		log.Printf("data catalog: %d symbols in %s", len(symbols), cfg.DataDir)
	}

	reports, err := report.NewWriter(cfg.ReportsDir)
	if err != nil {
		log.Fatalf("failed to init reports dir: %v", err)
	}

	store := persistence.NewRunStore(database, 200, 500*time.Millisecond)
	defer store.Close()

	runner := batch.NewRunner(batch.Options{
		Workers: cfg.MaxWorkers,
		Params: backtest.Params{
			InitialCash:  cfg.InitialCash,
			FeeRate:      cfg.FeeRate,
			SizeFraction: cfg.SizeFraction,
			StopFirst:    cfg.StopFirst,
		},
		MinTrades:       cfg.MinTrades,
		MaxDDAcceptable: cfg.MaxDDAcceptable,
	}, bus)

	sysMetrics := monitor.NewSystemMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	alertMon := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}
	alertMon.Start(ctx)

	server := api.NewServer(bus, database, catalog, store, reports, runner, configs, sysMetrics, cfg)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("API server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	if err := store.Flush(); err != nil {
		log.Printf("⚠️ final flush failed: %v", err)
	}
}
