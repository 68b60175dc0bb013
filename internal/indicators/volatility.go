package indicators

import (
	"math"

	"github.com/quantedge/derivengine/pkg/types"
)

// Candle aliases the cache's float64 candle mirror so this package's
// indicator math never touches decimal.Decimal: the conversion from the
// cache's decimal-backed types.Candle happens once, at the ring-extraction
// edge, via types.FloatCandles.
type Candle = types.FloatCandle

func trueRange(cur, prev Candle) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	tr := hl
	if hc > tr {
		tr = hc
	}
	if lc > tr {
		tr = lc
	}
	return tr
}

// ATR computes the Average True Range over `period` as the simple average
// of the last `period` true ranges.
func ATR(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1]))
	}
	return SMA(trs, period)
}

// ATRSeries computes ATR at every index, zero-valued before the window fills.
func ATRSeries(candles []Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}
	trs := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		trs[i] = trueRange(candles[i], candles[i-1])
	}
	for i := period; i < len(candles); i++ {
		out[i] = SMA(trs[1:i+1], period)
	}
	return out
}

// SuperTrend computes the ATR-band trend-following level with latching
// hysteresis (spec.md §4.1). Returns aligned level and direction
// (+1 uptrend, -1 downtrend) sequences; before the ATR window fills the
// bands sit on hl2 and the direction starts at +1.
func SuperTrend(candles []Candle, period int, mult float64) (level []float64, direction []int) {
	n := len(candles)
	level = make([]float64, n)
	direction = make([]int, n)
	if n == 0 {
		return level, direction
	}
	atr := ATRSeries(candles, period)
	upperBand := make([]float64, n)
	lowerBand := make([]float64, n)
	for i, c := range candles {
		hl2 := (c.High + c.Low) / 2
		upperBand[i] = hl2 + mult*atr[i]
		lowerBand[i] = hl2 - mult*atr[i]
	}
	direction[0] = 1
	level[0] = lowerBand[0]
	for i := 1; i < n; i++ {
		finalUpper := upperBand[i]
		if upperBand[i] > upperBand[i-1] && candles[i-1].Close <= upperBand[i-1] {
			finalUpper = upperBand[i-1]
		}
		finalLower := lowerBand[i]
		if lowerBand[i] < lowerBand[i-1] && candles[i-1].Close >= lowerBand[i-1] {
			finalLower = lowerBand[i-1]
		}
		upperBand[i] = finalUpper
		lowerBand[i] = finalLower

		prevDir := direction[i-1]
		dir := prevDir
		close := candles[i].Close
		switch prevDir {
		case 1:
			if close < finalLower {
				dir = -1
			}
		default:
			if close > finalUpper {
				dir = 1
			}
		}
		direction[i] = dir
		if dir == 1 {
			level[i] = finalLower
		} else {
			level[i] = finalUpper
		}
	}
	return level, direction
}
