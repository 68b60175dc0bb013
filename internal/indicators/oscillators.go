package indicators

import "math"

// RSI computes the relative strength index over `period` from the simple
// averages of the gains and losses of the last `period` changes (no Wilder
// smoothing). Returns 50 (neutral) when fewer than period+1 values exist.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}
	var gainSum, lossSum float64
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// Stochastic computes the %K value over `period`; returns 50 when the
// window isn't full or the range is degenerate.
func Stochastic(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 50
	}
	window := candles[len(candles)-period:]
	hi, lo := window[0].High, window[0].Low
	for _, c := range window {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	if hi == lo {
		return 50
	}
	last := candles[len(candles)-1].Close
	return (last - lo) / (hi - lo) * 100
}

// MACD returns the MACD line, signal line and histogram at the last index
// using the classic 12/26/9 windows unless overridden.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, hist float64) {
	if len(values) < slow+signal {
		return 0, 0, 0
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdSeries := make([]float64, len(values))
	for i := range values {
		macdSeries[i] = fastEMA[i] - slowEMA[i]
	}
	signalSeries := EMASeries(macdSeries[slow-1:], signal)
	macd = macdSeries[len(macdSeries)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	hist = macd - signalLine
	return macd, signalLine, hist
}

// MACDSeries returns the MACD line at every index, for callers that need to
// compare it against price action over a trailing window (MACDDivergence).
func MACDSeries(values []float64, fast, slow int) []float64 {
	if len(values) < slow {
		return nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	series := make([]float64, len(values))
	for i := range values {
		series[i] = fastEMA[i] - slowEMA[i]
	}
	return series
}

// ADX computes a directional-strength index over `period`: the DX of the
// simple averages of +DM, -DM and true range over the last `period` bars.
// The DX values are not averaged further. Returns 0 when there isn't enough
// data.
func ADX(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period*2 {
		return 0
	}
	var plusDM, minusDM, trs []float64
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		pd, md := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pd = upMove
		}
		if downMove > upMove && downMove > 0 {
			md = downMove
		}
		plusDM = append(plusDM, pd)
		minusDM = append(minusDM, md)
		trs = append(trs, trueRange(candles[i], candles[i-1]))
	}
	atrSum := SMA(trs, period)
	if atrSum == 0 {
		return 0
	}
	plusDI := SMA(plusDM, period) / atrSum * 100
	minusDI := SMA(minusDM, period) / atrSum * 100
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	dx := math.Abs(plusDI-minusDI) / sum * 100
	return dx
}

// BollingerBands returns the upper/middle/lower bands at the last index.
func BollingerBands(values []float64, period int, mult float64) (upper, middle, lower float64) {
	if len(values) < period {
		return 0, 0, 0
	}
	window := values[len(values)-period:]
	middle = SMA(values, period)
	var sumSq float64
	for _, v := range window {
		d := v - middle
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(period))
	return middle + mult*stddev, middle, middle - mult*stddev
}

// MACDDivergence returns -1 bearish, 0 none, +1 bullish over a trailing
// window of length `window`, comparing the current bar against the
// min/max of the *previous* window (spec.md §4.1).
func MACDDivergence(closes []float64, macdSeries []float64, window int) int {
	n := len(closes)
	if n < window+1 || len(macdSeries) < window+1 {
		return 0
	}
	prevCloses := closes[n-window-1 : n-1]
	prevMACD := macdSeries[n-window-1 : n-1]
	closeMin, closeMax := prevCloses[0], prevCloses[0]
	macdMin, macdMax := prevMACD[0], prevMACD[0]
	for i := range prevCloses {
		if prevCloses[i] < closeMin {
			closeMin = prevCloses[i]
		}
		if prevCloses[i] > closeMax {
			closeMax = prevCloses[i]
		}
		if prevMACD[i] < macdMin {
			macdMin = prevMACD[i]
		}
		if prevMACD[i] > macdMax {
			macdMax = prevMACD[i]
		}
	}
	curClose := closes[n-1]
	curMACD := macdSeries[n-1]
	if curClose < closeMin && curMACD > macdMin {
		return 1
	}
	if curClose > closeMax && curMACD < macdMax {
		return -1
	}
	return 0
}
