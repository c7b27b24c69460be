package db

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// User represents an application user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StrategyInstance represents a configured strategy row.
type StrategyInstance struct {
	ID           string
	Name         string
	StrategyType string
	Parameters   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Run is the stored summary of one backtest run. ProfitFactor is kept as
// text so the infinite sentinel survives storage.
type Run struct {
	ID             string
	StrategyID     string
	StrategyName   string
	Symbol         string
	Status         string
	Error          string
	Bars           int
	SkippedSignals int
	Params         string
	CapitalStart   float64
	CapitalEnd     float64
	Profit         float64
	TotalReturn    float64
	Trades         int
	WinRate        float64
	MaxDrawdown    float64
	ProfitFactor   string
	Sharpe         float64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// RunTrade is one stored round trip belonging to a run.
type RunTrade struct {
	RunID      string
	Side       string
	Qty        float64
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	PnL        float64
	Fees       float64
	ExitReason string
}

// EquityPoint is one stored equity sample belonging to a run.
type EquityPoint struct {
	RunID  string
	TS     time.Time
	Equity float64
}

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUserByEmail returns a user by email or nil if not found.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ListStrategyInstances returns all configured strategies.
func (d *Database) ListStrategyInstances(ctx context.Context) ([]StrategyInstance, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, name, strategy_type, parameters, is_active, created_at, updated_at
		FROM strategy_instances
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StrategyInstance
	for rows.Next() {
		var s StrategyInstance
		if err := rows.Scan(&s.ID, &s.Name, &s.StrategyType, &s.Parameters, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
