package market

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// SyntheticConfig controls the random-walk generator used for local
// development datasets.
type SyntheticConfig struct {
	Symbol     string
	Candles    int
	StartPrice float64
	Volatility float64 // stddev of per-bar return
	Trend      float64 // mean of per-bar return
	Start      time.Time
	Interval   time.Duration
	Seed       int64
}

// GenerateSeries produces a deterministic synthetic bar series from the
// config's seed. The same config always yields the same series.
func GenerateSeries(cfg SyntheticConfig) *Series {
	if cfg.Candles <= 0 {
		cfg.Candles = 2000
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.02
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	series := &Series{Symbol: cfg.Symbol, Bars: make([]Bar, 0, cfg.Candles)}
	price := cfg.StartPrice
	prevClose := cfg.StartPrice

	for i := 0; i < cfg.Candles; i++ {
		ret := rng.NormFloat64()*cfg.Volatility + cfg.Trend
		price *= 1 + ret

		open := prevClose
		closeP := price
		intrabar := math.Abs(rng.NormFloat64() * cfg.Volatility * closeP * 0.5)
		high := math.Max(open, closeP) + intrabar
		low := math.Max(0, math.Min(open, closeP)-intrabar)

		volume := 1000 * (1 + math.Abs(ret)/cfg.Volatility*2)
		volume = math.Floor(volume * (0.5 + rng.Float64()))

		series.Bars = append(series.Bars, Bar{
			Timestamp: cfg.Start.Add(time.Duration(i) * cfg.Interval),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(closeP),
			Volume:    volume,
		})
		prevClose = closeP
	}
	return series
}

// WriteCSV writes a series in the catalog's CSV layout.
func WriteCSV(series *Series, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range series.Bars {
		rec := []string{
			b.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			formatPrice(b.Open),
			formatPrice(b.High),
			formatPrice(b.Low),
			formatPrice(b.Close),
			strconv.FormatFloat(b.Volume, 'f', 0, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
