package strategy

import (
	"sort"
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

const (
	maxHourlyTrades  = 4
	atrLookback      = 50
	atrPercentileLow = 0.20
)

// strategy3 is the "Fast" strategy: 15m/1m breakout gated by an hourly trade
// cap and a volatility floor (spec.md §4.5).
func (e *Evaluator) strategy3(now time.Time, snap types.SymbolState) Intent {
	hour := now.UTC().Hour()
	if snap.LastTradeHour == hour && snap.HourlyTradeCount >= maxHourlyTrades {
		return noneIntent
	}

	ltf := types.FloatCandles(snap.Rings[types.Gran1m])
	if len(ltf) < 2 || !snap.HasHTFOpen {
		return noneIntent
	}

	atrValues := indicators.ATRSeries(ltf, 14)
	floor, ok := percentile(trimTrailing(atrValues, atrLookback), atrPercentileLow)
	if !ok || atrValues[len(atrValues)-1] < floor {
		return noneIntent
	}

	htfOpen := snap.HTFOpen
	last := ltf[len(ltf)-1]
	prev := ltf[len(ltf)-2]

	var side types.Side
	switch {
	case last.Close > htfOpen && prev.Close > htfOpen:
		side = types.SideLong
	case last.Close < htfOpen && prev.Close < htfOpen:
		side = types.SideShort
	default:
		return noneIntent
	}

	e.cache.RecordHourlyTrade(snap.Symbol, hour)

	expiry := secondsToNextBoundary(now, types.Gran15m) + 120
	return Intent{Kind: IntentOpen, Side: side, ExpirySeconds: floorDuration(expiry)}
}

// trimTrailing returns the last n elements of values (or all of them if
// there are fewer than n).
func trimTrailing(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// percentile returns the value at fraction p (0..1) of the sorted,
// non-zero entries in values. ok is false when fewer than atrLookback/2
// non-zero samples are available (warm-up).
func percentile(values []float64, p float64) (float64, bool) {
	nonZero := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			nonZero = append(nonZero, v)
		}
	}
	if len(nonZero) < atrLookback/2 {
		return 0, false
	}
	sort.Float64s(nonZero)
	idx := int(p * float64(len(nonZero)-1))
	return nonZero[idx], true
}
