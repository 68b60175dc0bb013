package strategy

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

const (
	scorecardStaleness  = 30 * time.Second
	minForecastCorr     = 0.5
	minStructuralRR     = 1.5
	screenerExpiryFloor = 15
)

// screenerDriven covers strategies 5, 6 and 7: all three are pure consumers
// of the screener's scorecard rather than computing their own signal
// (spec.md §4.5). The screener already applies strategy-specific logic
// (synthetic intelligence, legacy weighted blocks, multi-TF alignment with
// its own debounce) when it wrote the scorecard; this method only applies
// the shared gates before turning a signal into an Intent.
func (e *Evaluator) screenerDriven(now time.Time, cfg types.Configuration, snap types.SymbolState) Intent {
	if !snap.HasScorecard {
		return noneIntent
	}
	sc := snap.Scorecard
	if sc.Signal == types.SignalWait {
		return noneIntent
	}
	if now.Sub(sc.LastUpdate) > scorecardStaleness {
		return noneIntent
	}
	if !sc.Valid() {
		return noneIntent
	}

	if len(sc.Forecast.ForecastPrices) > 0 && sc.Forecast.Correlation < minForecastCorr {
		return noneIntent
	}

	var ltfRing []types.FloatCandle
	switch cfg.ActiveStrategy {
	case types.Strategy7:
		ltfRing = types.FloatCandles(snap.Rings[types.Gran5m])
	default:
		ltfRing = types.FloatCandles(snap.Rings[types.Gran5m])
	}
	if len(ltfRing) > 0 && len(sc.Forecast.ForecastPrices) > 0 {
		current := ltfRing[len(ltfRing)-1].Close
		long := sc.Direction == types.DirectionCall
		rr := indicators.StructuralRR(current, sc.Forecast.ForecastPrices, long)
		if rr < minStructuralRR {
			return noneIntent
		}
	}

	side := types.SideLong
	if sc.Direction == types.DirectionPut {
		side = types.SideShort
	}

	expirySeconds := int64(sc.ExpiryMin * 60)
	if expirySeconds < screenerExpiryFloor {
		expirySeconds = screenerExpiryFloor
	}

	return Intent{
		Kind:          IntentOpen,
		Side:          side,
		ExpirySeconds: expirySeconds,
		Multiplier:    sc.Multiplier,
	}
}
