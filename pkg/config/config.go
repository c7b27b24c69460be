package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the backtest core.
type Config struct {
	Port string

	// Data
	DataDir        string
	ReportsDir     string
	DBPath         string
	StrategyConfig string

	// Run defaults
	InitialCash  float64
	FeeRate      float64 // decimal (e.g. 0.0005 = 5 bps)
	SizeFraction float64
	StopFirst    bool

	// Batch orchestration
	MaxWorkers      int
	RunTimeout      time.Duration
	MinTrades       int
	MaxDDAcceptable float64

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/backtest.db")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DataDir:         getEnv("DATA_DIR", "./data/candles"),
		ReportsDir:      getEnv("REPORTS_DIR", "./reports"),
		DBPath:          dbPath,
		StrategyConfig:  getEnv("STRATEGY_CONFIG", "./config/strategies.yaml"),
		InitialCash:     getEnvFloat("INITIAL_CASH", 10000.0),
		FeeRate:         getEnvFloat("FEE_RATE", 0.0005),
		SizeFraction:    getEnvFloat("SIZE_FRACTION", 0.95),
		StopFirst:       getEnv("STOP_FIRST", "true") == "true",
		MaxWorkers:      getEnvInt("MAX_WORKERS", 4),
		RunTimeout:      time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 300)) * time.Second,
		MinTrades:       getEnvInt("MIN_TRADES", 30),
		MaxDDAcceptable: getEnvFloat("MAX_DD_ACCEPTABLE", 0.15),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
