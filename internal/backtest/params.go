package backtest

import "fmt"

// Params are the account-level knobs for a single run.
type Params struct {
	InitialCash  float64 `json:"initial_cash"`
	FeeRate      float64 `json:"fee_rate"`
	SizeFraction float64 `json:"size_fraction"`
	StopFirst    bool    `json:"stop_first"`
}

// DefaultParams returns the stock account configuration.
func DefaultParams() Params {
	return Params{
		InitialCash:  10000,
		FeeRate:      0.0005,
		SizeFraction: 0.95,
		StopFirst:    true,
	}
}

// ConfigError reports an invalid run parameter.
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Validate checks the parameters before a run starts.
func (p Params) Validate() error {
	if p.InitialCash <= 0 {
		return &ConfigError{Field: "initial_cash", Value: p.InitialCash, Reason: "must be positive"}
	}
	if p.FeeRate < 0 || p.FeeRate >= 1 {
		return &ConfigError{Field: "fee_rate", Value: p.FeeRate, Reason: "must be in [0, 1)"}
	}
	if p.SizeFraction <= 0 || p.SizeFraction > 1 {
		return &ConfigError{Field: "size_fraction", Value: p.SizeFraction, Reason: "must be in (0, 1]"}
	}
	return nil
}
