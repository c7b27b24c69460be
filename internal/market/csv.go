package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Accepted timestamp layouts, tried in order. Integer timestamps are treated
// as unix seconds or milliseconds depending on magnitude.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// LoadCSV reads a bar series from a CSV file with the header
// timestamp,open,high,low,close,volume. Rows must already be in time order;
// ordering is verified by Series.Validate before any run consumes the data.
func LoadCSV(path, symbol string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return &Series{Symbol: symbol}, nil
	}

	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	series := &Series{Symbol: symbol, Bars: make([]Bar, 0, len(records)-1)}
	for i, rec := range records[1:] {
		bar, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	return series, nil
}

type columnIndex struct {
	ts, open, high, low, closeP, volume int
}

func headerIndex(header []string) (columnIndex, error) {
	idx := columnIndex{ts: -1, open: -1, high: -1, low: -1, closeP: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "open_time", "date":
			idx.ts = i
		case "open":
			idx.open = i
		case "high":
			idx.high = i
		case "low":
			idx.low = i
		case "close":
			idx.closeP = i
		case "volume":
			idx.volume = i
		}
	}
	if idx.ts < 0 || idx.open < 0 || idx.high < 0 || idx.low < 0 || idx.closeP < 0 || idx.volume < 0 {
		return idx, fmt.Errorf("missing required columns in header %v", header)
	}
	return idx, nil
}

func parseRow(rec []string, cols columnIndex) (Bar, error) {
	need := cols.volume
	for _, c := range []int{cols.ts, cols.open, cols.high, cols.low, cols.closeP} {
		if c > need {
			need = c
		}
	}
	if len(rec) <= need {
		return Bar{}, fmt.Errorf("short row: %v", rec)
	}

	ts, err := parseTimestamp(rec[cols.ts])
	if err != nil {
		return Bar{}, err
	}

	fields := [5]float64{}
	for i, c := range []int{cols.open, cols.high, cols.low, cols.closeP, cols.volume} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("parse field %q: %w", rec[c], err)
		}
		fields[i] = v
	}

	return Bar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Heuristic: epoch milliseconds are 13+ digits for modern dates.
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
