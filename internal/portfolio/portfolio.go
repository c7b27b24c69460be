// Package portfolio tracks the simulated account during a run: settled
// cash, the open position with its protective levels, and the closed
// trade ledger.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"backtest-core/internal/market"
)

// Side identifies the direction of a position or trade.
type Side int

const (
	Flat Side = iota
	Long
	Short
)

func (s Side) String() string {
	switch s {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Exit reasons recorded on closed trades.
const (
	ExitSignal    = "signal"
	ExitStop      = "stop"
	ExitTarget    = "target"
	ExitEndOfData = "end_of_data"
)

var (
	// ErrPositionOpen is returned when opening while a position exists.
	ErrPositionOpen = errors.New("position already open")
	// ErrNoPosition is returned when closing with nothing open.
	ErrNoPosition = errors.New("no open position")
	// ErrInsufficientCash is returned when sizing floors to zero units.
	ErrInsufficientCash = errors.New("insufficient cash for one unit")
)

// Position is the currently open exposure. Quantity is always positive;
// Side carries the direction. Stop and target of zero mean unset.
type Position struct {
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	StopPrice   float64   `json:"stop_price,omitempty"`
	TargetPrice float64   `json:"target_price,omitempty"`
}

// Trade is one closed round trip. PnL is net of both entry and exit fees.
type Trade struct {
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	PnL        float64   `json:"pnl"`
	Fees       float64   `json:"fees"`
	ExitReason string    `json:"exit_reason"`
}

// HoldDuration is the time the trade was open.
func (t Trade) HoldDuration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Portfolio is the account state machine for one run. Cash holds settled
// capital: entries deduct only the entry fee, exits settle realized pnl
// minus the exit fee, so equity is always cash plus unrealized pnl.
type Portfolio struct {
	cash        float64
	initialCash float64
	feeRate     float64
	stopFirst   bool

	position Position
	trades   []Trade
}

// New creates a portfolio with the given starting cash and per-side
// proportional fee rate. When stopFirst is true, a bar that touches both
// protective levels fills the stop.
func New(initialCash, feeRate float64, stopFirst bool) *Portfolio {
	return &Portfolio{
		cash:        initialCash,
		initialCash: initialCash,
		feeRate:     feeRate,
		stopFirst:   stopFirst,
	}
}

// Cash returns settled capital.
func (p *Portfolio) Cash() float64 { return p.cash }

// InitialCash returns the starting capital.
func (p *Portfolio) InitialCash() float64 { return p.initialCash }

// Position returns the open position; Side is Flat when nothing is open.
func (p *Portfolio) Position() Position { return p.position }

// Trades returns the closed trade ledger in close order.
func (p *Portfolio) Trades() []Trade { return p.trades }

// Equity values the account at the given price: settled cash plus the
// unrealized pnl of any open position.
func (p *Portfolio) Equity(price float64) float64 {
	return p.cash + p.unrealized(price)
}

func (p *Portfolio) unrealized(price float64) float64 {
	switch p.position.Side {
	case Long:
		return (price - p.position.EntryPrice) * p.position.Quantity
	case Short:
		return (p.position.EntryPrice - price) * p.position.Quantity
	default:
		return 0
	}
}

// Open enters a position at price, sizing by sizeFraction of settled cash
// floored to whole units. Returns ErrInsufficientCash when the floor is
// zero and ErrPositionOpen when a position already exists.
func (p *Portfolio) Open(side Side, price float64, at time.Time, sizeFraction, stop, target float64) error {
	if p.position.Side != Flat {
		return ErrPositionOpen
	}
	if side != Long && side != Short {
		return fmt.Errorf("cannot open %s position", side)
	}
	if price <= 0 {
		return fmt.Errorf("invalid entry price %v", price)
	}

	qty := math.Floor(p.cash * sizeFraction / price)
	if qty <= 0 {
		return ErrInsufficientCash
	}

	fee := price * qty * p.feeRate
	p.cash -= fee
	p.position = Position{
		Side:        side,
		Quantity:    qty,
		EntryPrice:  price,
		EntryTime:   at,
		StopPrice:   stop,
		TargetPrice: target,
	}
	return nil
}

// Close exits the open position at price and appends the round trip to the
// trade ledger.
func (p *Portfolio) Close(price float64, at time.Time, reason string) (Trade, error) {
	if p.position.Side == Flat {
		return Trade{}, ErrNoPosition
	}

	pos := p.position
	gross := 0.0
	if pos.Side == Long {
		gross = (price - pos.EntryPrice) * pos.Quantity
	} else {
		gross = (pos.EntryPrice - price) * pos.Quantity
	}

	entryFee := pos.EntryPrice * pos.Quantity * p.feeRate
	exitFee := price * pos.Quantity * p.feeRate
	p.cash += gross - exitFee

	trade := Trade{
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		ExitPrice:  price,
		ExitTime:   at,
		PnL:        gross - entryFee - exitFee,
		Fees:       entryFee + exitFee,
		ExitReason: reason,
	}
	p.trades = append(p.trades, trade)
	p.position = Position{}
	return trade, nil
}

// CheckProtective tests the bar's range against the open position's stop
// and target and closes at the touched level. The fill price is the level
// itself. Returns the trade and true when an exit fired.
func (p *Portfolio) CheckProtective(bar market.Bar) (Trade, bool) {
	if p.position.Side == Flat {
		return Trade{}, false
	}

	stopHit, targetHit := p.touched(bar)
	if !stopHit && !targetHit {
		return Trade{}, false
	}

	if stopHit && (p.stopFirst || !targetHit) {
		trade, _ := p.Close(p.position.StopPrice, bar.Timestamp, ExitStop)
		return trade, true
	}
	trade, _ := p.Close(p.position.TargetPrice, bar.Timestamp, ExitTarget)
	return trade, true
}

func (p *Portfolio) touched(bar market.Bar) (stopHit, targetHit bool) {
	pos := p.position
	if pos.Side == Long {
		stopHit = pos.StopPrice > 0 && bar.Low <= pos.StopPrice
		targetHit = pos.TargetPrice > 0 && bar.High >= pos.TargetPrice
	} else {
		stopHit = pos.StopPrice > 0 && bar.High >= pos.StopPrice
		targetHit = pos.TargetPrice > 0 && bar.Low <= pos.TargetPrice
	}
	return stopHit, targetHit
}

// ForceClose exits any open position at the bar's close. Used when the
// data runs out with exposure still on.
func (p *Portfolio) ForceClose(bar market.Bar) (Trade, bool) {
	if p.position.Side == Flat {
		return Trade{}, false
	}
	trade, _ := p.Close(bar.Close, bar.Timestamp, ExitEndOfData)
	return trade, true
}
