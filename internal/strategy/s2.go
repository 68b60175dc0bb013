package strategy

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// strategy2 is the "Moderate" strategy: 1h/3m breakout confirmed by 3m RSI
// and a 4h EMA21/EMA50 bias filter (spec.md §4.5).
func (e *Evaluator) strategy2(now time.Time, cfg types.Configuration, snap types.SymbolState) Intent {
	ltf := types.FloatCandles(snap.Rings[types.Gran3m])
	if len(ltf) < 2 || !snap.HasHTFOpen {
		return noneIntent
	}
	last := ltf[len(ltf)-1]
	htfOpen := snap.HTFOpen

	var side types.Side
	switch {
	case last.Open <= htfOpen && last.Close > htfOpen && last.Close > last.Open:
		side = types.SideLong
	case last.Open >= htfOpen && last.Close < htfOpen && last.Close < last.Open:
		side = types.SideShort
	default:
		return noneIntent
	}

	rsi := indicators.RSI(indicators.Closes(ltf), 14)
	if side == types.SideLong && rsi <= 55 {
		return noneIntent
	}
	if side == types.SideShort && rsi >= 45 {
		return noneIntent
	}

	h4 := types.FloatCandles(snap.Rings[types.Gran4h])
	if len(h4) >= 50 {
		closes := indicators.Closes(h4)
		ema21 := indicators.EMA(closes, 21)
		ema50 := indicators.EMA(closes, 50)
		if side == types.SideLong && ema21 <= ema50 {
			return noneIntent
		}
		if side == types.SideShort && ema21 >= ema50 {
			return noneIntent
		}
	}

	expiry := secondsToNextBoundary(now, types.Gran1h)
	h1 := types.FloatCandles(snap.Rings[types.Gran1h])
	if len(h1) > 15 {
		atr1h := indicators.ATR(h1, 14)
		if atr1h > 0 && absFloat(last.Close-htfOpen) > atr1h {
			expiry = 30 * 60
		}
	}

	return Intent{Kind: IntentOpen, Side: side, ExpirySeconds: floorDuration(expiry)}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
