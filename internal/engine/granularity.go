package engine

import "github.com/quantedge/derivengine/pkg/types"

// ltfGranularity/htfGranularity mirror the per-strategy timeframe lookup
// already duplicated in internal/strategy and internal/screener — a one-line
// table isn't worth a cross-package dependency (see strategy.go's comment).
func ltfGranularity(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran15m
	case types.Strategy2:
		return types.Gran3m
	case types.Strategy3, types.Strategy4:
		return types.Gran1m
	default:
		return types.Gran1m
	}
}

func htfGranularity(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran1d
	case types.Strategy2:
		return types.Gran1h
	case types.Strategy3:
		return types.Gran15m
	case types.Strategy4:
		return types.Gran5m
	default:
		return types.Gran1h
	}
}

// screenerGranularities lists every timeframe a strategy's screener and
// monitor exits may touch, so subscription reconciliation fetches enough
// history up front instead of only the LTF/HTF pair.
func screenerGranularities(cfg types.Configuration) []types.Granularity {
	set := map[types.Granularity]struct{}{
		ltfGranularity(cfg): {},
		htfGranularity(cfg): {},
		types.Gran1m:        {},
		types.Gran5m:        {},
		types.Gran15m:       {},
		types.Gran1h:        {},
		types.Gran4h:        {},
	}
	out := make([]types.Granularity, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out
}
