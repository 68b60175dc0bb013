package strategy

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// strategy1 is the "Slow" strategy: daily/15m breakout with an EOD expiry
// and a whipsaw abort (spec.md §4.5).
func (e *Evaluator) strategy1(now time.Time, cfg types.Configuration, snap types.SymbolState) Intent {
	ltf := types.FloatCandles(snap.Rings[types.Gran15m])
	if len(ltf) < 2 || !snap.HasHTFOpen {
		return noneIntent
	}
	last := ltf[len(ltf)-1]
	htfOpen := snap.HTFOpen

	if snap.DailyCrosses > 3 {
		return noneIntent
	}

	var side types.Side
	switch {
	case last.Open <= htfOpen && last.Close > htfOpen && last.Close > last.Open:
		side = types.SideLong
	case last.Open >= htfOpen && last.Close < htfOpen && last.Close < last.Open:
		side = types.SideShort
	default:
		return noneIntent
	}

	h4 := types.FloatCandles(snap.Rings[types.Gran4h])
	if len(h4) >= 100 {
		ema100 := indicators.EMA(indicators.Closes(h4), 100)
		if side == types.SideLong && last.Close <= ema100 {
			return noneIntent
		}
		if side == types.SideShort && last.Close >= ema100 {
			return noneIntent
		}
	}

	e.cache.RecordCross(snap.Symbol, side, currentBoundary(now, types.Gran1d))

	return Intent{Kind: IntentOpen, Side: side, ExpirySeconds: floorDuration(secondsToUTCMidnight(now))}
}

// floorDuration enforces the 15s execution floor (spec.md §4.7).
func floorDuration(seconds int64) int64 {
	if seconds < 15 {
		return 15
	}
	return seconds
}
