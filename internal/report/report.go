// Package report persists run and batch results as JSON files and serves
// them back to the API layer.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"backtest-core/internal/backtest"
	"backtest-core/internal/batch"
)

// BatchFileName is the roll-up file written after every batch.
const BatchFileName = "full_report.json"

// ErrInvalidName rejects report names that could escape the reports dir.
var ErrInvalidName = errors.New("invalid report name")

// FileInfo describes one stored report file.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Writer stores reports under a single directory.
type Writer struct {
	dir string
}

// NewWriter creates the reports directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the reports directory.
func (w *Writer) Dir() string { return w.dir }

// SaveRun writes one run as <strategy>_<symbol>.json and returns the file
// name. Repeated runs of the same combination overwrite the previous file.
func (w *Writer) SaveRun(res *backtest.RunResult) (string, error) {
	name := fmt.Sprintf("%s_%s.json", sanitize(res.StrategyID), sanitize(res.Symbol))
	if err := w.writeJSON(name, res); err != nil {
		return "", err
	}
	return name, nil
}

// SaveBatch writes the batch roll-up plus one file per contained run.
func (w *Writer) SaveBatch(rep *batch.Report) error {
	for _, res := range rep.Results {
		if _, err := w.SaveRun(res); err != nil {
			return err
		}
	}
	return w.writeJSON(BatchFileName, rep)
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0644); err != nil {
		return fmt.Errorf("write report %s: %w", name, err)
	}
	return nil
}

// List returns all stored report files, newest first.
func (w *Writer) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read reports dir: %w", err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{Name: e.Name(), Size: fi.Size(), ModifiedAt: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}

// Read returns the raw contents of one stored report. The name must be a
// bare .json file name; anything resembling a path is rejected.
func (w *Writer) Read(name string) ([]byte, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func validName(name string) bool {
	if name == "" || !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}

// sanitize keeps file names safe regardless of what IDs and symbols hold.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
