package execution

import "github.com/quantedge/derivengine/pkg/types"

// minStakeUSD is the broker's floor stake for any contract (spec.md §4.7).
const minStakeUSD = 0.35

// multiplierBalancePct is the fraction of account balance multiplier
// contracts stake when the balance isn't fixed (spec.md §4.7: "multipliers
// use 5% of balance when not fixed").
const multiplierBalancePct = 0.05

// computeStake sizes the stake per spec.md §4.7: BalanceValue itself under a
// fixed balance, otherwise a percentage of account balance — 5% flat for
// multiplier contracts, BalanceValue% for binaries — clamped to the 0.35 USD
// floor.
func computeStake(cfg types.Configuration, metrics types.SessionMetrics, isMultiplier bool) float64 {
	var stake float64
	switch {
	case cfg.UseFixedBalance:
		stake = cfg.BalanceValue
	case isMultiplier:
		stake = metrics.AccountBalance * multiplierBalancePct
	default:
		stake = metrics.AccountBalance * cfg.BalanceValue / 100
	}
	if stake < minStakeUSD {
		stake = minStakeUSD
	}
	return stake
}
