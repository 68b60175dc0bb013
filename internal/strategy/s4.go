package strategy

import (
	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

const (
	zoneInvalidatePct = 0.0005 // 0.05% full cross-through retires a zone
	zoneTouchPct      = 0.0002 // 0.02% proximity counts as a touch
	zoneHalveTouches  = 3
)

// strategy4 is the SNR Price Action strategy: reacts to a 5m candle close
// touching a cached support/resistance zone, confirmed by a candlestick
// reversal pattern score, 5m RSI, and 1h EMA50 alignment (spec.md §4.5).
func (e *Evaluator) strategy4(isCandleClose bool, symbol string, snap types.SymbolState) Intent {
	if !isCandleClose {
		return noneIntent
	}
	m5 := types.FloatCandles(snap.Rings[types.Gran5m])
	m1 := types.FloatCandles(snap.Rings[types.Gran1m])
	if len(m5) < 5 || len(m1) == 0 {
		return noneIntent
	}
	last := m5[len(m5)-1]

	zones := make([]types.SNRZone, 0, len(snap.SNRZones))
	for _, z := range snap.SNRZones {
		if crossedThrough(z, last, zoneInvalidatePct) {
			continue // fully invalidated this close
		}
		zones = append(zones, z)
	}

	var touched *types.SNRZone
	for i := range zones {
		if touchedZone(zones[i], last, zoneTouchPct) {
			touched = &zones[i]
			break
		}
	}
	if touched == nil {
		e.cache.SetSNRZones(symbol, zones)
		return noneIntent
	}

	pattern := indicators.ClassifyPattern(m1)
	score := indicators.ScoreReversalPattern(pattern)
	if score < 2 {
		e.cache.SetSNRZones(symbol, zones)
		return noneIntent
	}

	var side types.Side
	if touched.Type == types.ZoneResistance {
		side = types.SideShort
	} else {
		side = types.SideLong
	}
	if indicators.IsBullishPattern(pattern) != (side == types.SideLong) {
		e.cache.SetSNRZones(symbol, zones)
		return noneIntent
	}

	rsi := indicators.RSI(indicators.Closes(m5), 14)
	if side == types.SideLong && rsi >= 80 {
		e.cache.SetSNRZones(symbol, zones)
		return noneIntent
	}
	if side == types.SideShort && rsi <= 20 {
		e.cache.SetSNRZones(symbol, zones)
		return noneIntent
	}

	h1 := types.FloatCandles(snap.Rings[types.Gran1h])
	if len(h1) >= 50 {
		ema50 := indicators.EMA(indicators.Closes(h1), 50)
		if side == types.SideLong && last.Close <= ema50 {
			e.cache.SetSNRZones(symbol, zones)
			return noneIntent
		}
		if side == types.SideShort && last.Close >= ema50 {
			e.cache.SetSNRZones(symbol, zones)
			return noneIntent
		}
	}

	// Echo veto: a 1h forecast pointing the opposite way cancels the entry.
	h1closes := indicators.Closes(h1)
	if len(h1closes) > 0 {
		forecast, _ := indicators.EchoForecast(h1closes, 20, 10)
		_, _, final := indicators.ForecastExtremes(forecast)
		wantsUp := side == types.SideLong
		if (final > h1closes[len(h1closes)-1]) != wantsUp {
			e.cache.SetSNRZones(symbol, zones)
			return noneIntent
		}
	}

	touched.Touches++
	touched.LifetimeTouches++
	stakeMult := 1.0
	if touched.LifetimeTouches >= zoneHalveTouches {
		stakeMult = 0.5
	}
	e.cache.SetSNRZones(symbol, zones)

	return Intent{Kind: IntentOpen, Side: side, ExpirySeconds: 300, StakeMultiplier: stakeMult}
}

// crossedThrough reports whether a candle fully crossed a zone (price moved
// from one side to the other, passing beyond it by pct), retiring it.
func crossedThrough(z types.SNRZone, c types.FloatCandle, pct float64) bool {
	band := z.Price * pct
	switch z.Type {
	case types.ZoneSupport:
		return c.Open > z.Price+band && c.Close < z.Price-band
	case types.ZoneResistance:
		return c.Open < z.Price-band && c.Close > z.Price+band
	default:
		return false
	}
}

// touchedZone reports whether the candle's high/low came within pct of the
// zone price.
func touchedZone(z types.SNRZone, c types.FloatCandle, pct float64) bool {
	band := z.Price * pct
	return c.Low <= z.Price+band && c.High >= z.Price-band
}
