package screener

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// suggestedExpiryMinutes derives the expiry from the echo-arrival index —
// the first forecast index at which price would cross entry ± (0.5 +
// confidence/100)*ATR in the intended direction — falling back to strategy
// defaults banded by confidence (spec.md §4.4).
func suggestedExpiryMinutes(forecast []float64, entry, atr, confidence float64, long bool) float64 {
	threshold := (0.5 + confidence/100) * atr
	idx := indicators.EchoArrivalIndex(forecast, entry, threshold, long)
	if idx >= 0 {
		return float64(idx)
	}
	abs := confidence
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 75:
		return 15
	case abs >= 60:
		return 10
	default:
		return 5
	}
}

// suggestedMultiplier tiers the recommended multiplier by relative ATR and
// ADX, capped to 10x during dead hours (spec.md §4.4).
func suggestedMultiplier(relATR, adx float64, now time.Time) float64 {
	mult := 50.0
	switch {
	case relATR > 0.03:
		mult = 10
	case relATR > 0.015:
		mult = 25
	case relATR > 0.005:
		mult = 50
	default:
		mult = 100
	}
	if adx > 40 {
		mult *= 1.2
	} else if adx < 15 {
		mult *= 0.7
	}
	if inDeadHours(now) && mult > 10 {
		mult = 10
	}
	if mult > 100 {
		mult = 100
	}
	return mult
}

func relativeATR(candles []types.FloatCandle) float64 {
	atr := indicators.ATR(candles, 14)
	closes := indicators.Closes(candles)
	if len(closes) == 0 || closes[len(closes)-1] == 0 {
		return 0
	}
	return atr / closes[len(closes)-1]
}
