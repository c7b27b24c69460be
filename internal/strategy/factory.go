package strategy

import (
	"fmt"
)

// FromConfig instantiates the strategy a config entry describes. Unknown
// parameter keys are ignored; missing ones keep their defaults.
func FromConfig(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case "swing":
		params := DefaultSwingParams()
		if err := decodeParams(cfg.Parameters, &params); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewSwingStrategy(cfg.ID, params), nil
	case "sniper":
		params := DefaultSniperParams()
		if err := decodeParams(cfg.Parameters, &params); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewSniperStrategy(cfg.ID, params), nil
	case "fast":
		params := DefaultFastParams()
		if err := decodeParams(cfg.Parameters, &params); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewFastStrategy(cfg.ID, params), nil
	case "spot":
		params := DefaultSpotParams()
		if err := decodeParams(cfg.Parameters, &params); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewSpotStrategy(cfg.ID, params), nil
	case "hybrid":
		params := DefaultHybridParams()
		if err := decodeParams(cfg.Parameters, &params); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewHybridStrategy(cfg.ID, params), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", cfg.Type)
	}
}

// FactoryFromConfig wraps FromConfig so every caller gets a fresh instance.
func FactoryFromConfig(cfg Config) Factory {
	return func() (Strategy, error) {
		return FromConfig(cfg)
	}
}

// Types lists the strategy types the factory understands.
func Types() []string {
	return []string{"fast", "hybrid", "sniper", "spot", "swing"}
}
