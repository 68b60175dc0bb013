package config

import (
	"fmt"

	"github.com/quantedge/derivengine/pkg/types"
)

// Validate checks the fields the engine cannot safely run without.
func Validate(cfg types.Configuration) error {
	if cfg.APIToken == "" {
		return fmt.Errorf("apiToken is required")
	}
	if cfg.AppID == "" {
		return fmt.Errorf("appId is required")
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one market")
	}
	switch cfg.ActiveStrategy {
	case types.Strategy1, types.Strategy2, types.Strategy3, types.Strategy4,
		types.Strategy5, types.Strategy6, types.Strategy7:
	default:
		return fmt.Errorf("activeStrategy %q is not one of the seven configured strategies", cfg.ActiveStrategy)
	}
	switch cfg.ContractType {
	case types.ContractTypeRiseFall, types.ContractTypeMultiplier:
	default:
		return fmt.Errorf("contractType %q must be rise_fall or multiplier", cfg.ContractType)
	}
	if cfg.ContractType == types.ContractTypeMultiplier && cfg.MultiplierValue <= 0 {
		return fmt.Errorf("multiplierValue must be > 0 for multiplier contracts")
	}
	if !cfg.UseFixedBalance && cfg.BalanceValue <= 0 {
		return fmt.Errorf("balanceValue must be > 0 when not using a fixed stake")
	}
	if cfg.MaxDailyLossPct <= 0 {
		return fmt.Errorf("maxDailyLossPct must be > 0")
	}
	if cfg.MaxDailyProfitPct <= 0 {
		return fmt.Errorf("maxDailyProfitPct must be > 0")
	}
	if cfg.BinaryFailsafePct <= 0 {
		return fmt.Errorf("binaryFailsafePct must be > 0")
	}
	return nil
}
