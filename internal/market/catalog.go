package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Catalog discovers per-symbol CSV datasets in a directory and caches loaded
// series. Series handed out are shared; callers must treat them as read-only.
type Catalog struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*Series
}

// SymbolInfo summarizes one dataset for listing endpoints.
type SymbolInfo struct {
	Symbol  string `json:"symbol"`
	Candles int    `json:"candles"`
	Size    int64  `json:"size"`
}

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, cache: make(map[string]*Series)}
}

// Dir returns the data directory the catalog scans.
func (c *Catalog) Dir() string { return c.dir }

// Symbols lists all symbols that have a CSV dataset, sorted.
func (c *Catalog) Symbols() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Describe returns listing info for every dataset in the catalog.
func (c *Catalog) Describe() ([]SymbolInfo, error) {
	symbols, err := c.Symbols()
	if err != nil {
		return nil, err
	}
	infos := make([]SymbolInfo, 0, len(symbols))
	for _, sym := range symbols {
		path := c.path(sym)
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		series, err := c.Load(sym)
		if err != nil {
			continue
		}
		infos = append(infos, SymbolInfo{Symbol: sym, Candles: len(series.Bars), Size: st.Size()})
	}
	return infos, nil
}

// Load returns the cached series for symbol, reading and validating the CSV
// on first use. Symbol names resolve to files inside the data directory, so
// anything resembling a path is rejected.
func (c *Catalog) Load(symbol string) (*Series, error) {
	if !validSymbol(symbol) {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	c.mu.RLock()
	series, ok := c.cache[symbol]
	c.mu.RUnlock()
	if ok {
		return series, nil
	}

	series, err := LoadCSV(c.path(symbol), symbol)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[symbol] = series
	c.mu.Unlock()
	return series, nil
}

// Invalidate drops a cached series, forcing a reload on next use.
func (c *Catalog) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.cache, symbol)
	c.mu.Unlock()
}

func (c *Catalog) path(symbol string) string {
	return filepath.Join(c.dir, symbol+".csv")
}

func validSymbol(symbol string) bool {
	if symbol == "" {
		return false
	}
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
