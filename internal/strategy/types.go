// Package strategy holds the pluggable trading rules evaluated bar by bar
// during a simulation, plus the YAML config loader that instantiates them.
package strategy

import (
	"backtest-core/internal/market"
)

// Action is a strategy's decision for the current bar.
type Action int

const (
	Hold Action = iota
	EnterLong
	ExitLong
	EnterShort
	ExitShort
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case EnterLong:
		return "ENTER_LONG"
	case ExitLong:
		return "EXIT_LONG"
	case EnterShort:
		return "ENTER_SHORT"
	case ExitShort:
		return "EXIT_SHORT"
	default:
		return "UNKNOWN"
	}
}

// Signal is a decision emitted by a strategy for one bar. StopPrice and
// TargetPrice are absolute price levels; zero means no bracket on that side.
// SizeFraction overrides the run's default position sizing when positive.
type Signal struct {
	Action       Action
	SizeFraction float64
	StopPrice    float64
	TargetPrice  float64
	Reason       string
}

// Strategy is a deterministic trading rule. OnBar is called once per bar
// with a window ending at the current bar; implementations must only look
// at the bars they are given.
type Strategy interface {
	// ID returns the unique instance ID
	ID() string
	// Name returns the human-readable name
	Name() string
	// Warmup returns the number of bars needed before OnBar can emit
	// anything other than Hold.
	Warmup() int
	// OnBar evaluates the window whose last element is the current bar.
	OnBar(window []market.Bar) (Signal, error)
}

// Factory builds a fresh strategy instance. Each run gets its own instance
// so that runs never share mutable state.
type Factory func() (Strategy, error)
