package indicators

import "github.com/quantedge/derivengine/pkg/utils"

// EchoForecast slides back up to `evalWindows` historical windows of length
// W = len(recent), finds the one with the highest Pearson correlation to the
// reference window (the "echo"), and projects the cumulative deltas that
// followed it onto the last close (spec.md §4.1, GLOSSARY "Echo Forecast").
//
// Returns the forecast price series (length W) and the echo's correlation.
// Returns (nil, 0) when there isn't enough history to form even one
// candidate window.
func EchoForecast(closes []float64, w, evalWindows int) (forecast []float64, correlation float64) {
	n := len(closes)
	if w <= 0 || n < 2*w+1 {
		return nil, 0
	}
	reference := closes[n-w:]

	bestCorr := -2.0
	bestStart := -1
	maxStart := n - 2*w
	minStart := maxStart - evalWindows + 1
	if minStart < 0 {
		minStart = 0
	}
	for start := maxStart; start >= minStart; start-- {
		candidate := closes[start : start+w]
		corr := utils.PearsonCorrelation(reference, candidate)
		if corr > bestCorr {
			bestCorr = corr
			bestStart = start
		}
	}
	if bestStart < 0 {
		return nil, 0
	}

	followingStart := bestStart + w
	followingEnd := followingStart + w
	if followingEnd > n {
		followingEnd = n
	}
	deltas := make([]float64, 0, w)
	for i := followingStart; i < followingEnd-1; i++ {
		deltas = append(deltas, closes[i+1]-closes[i])
	}

	lastClose := closes[n-1]
	forecast = make([]float64, w)
	cum := lastClose
	for i := 0; i < w; i++ {
		if i < len(deltas) {
			cum += deltas[i]
		}
		forecast[i] = cum
	}
	return forecast, bestCorr
}

// ForecastExtremes returns the high, low and final value of a forecast series.
func ForecastExtremes(forecast []float64) (hi, lo, final float64) {
	if len(forecast) == 0 {
		return 0, 0, 0
	}
	hi, lo = forecast[0], forecast[0]
	for _, p := range forecast {
		if p > hi {
			hi = p
		}
		if p < lo {
			lo = p
		}
	}
	return hi, lo, forecast[len(forecast)-1]
}

// EchoArrivalIndex returns the first forecast index at which price would
// cross entry +/- threshold in the intended direction (long=true => upward
// cross), used to derive suggested expiry (spec.md §4.4). Returns -1 if the
// forecast never crosses.
func EchoArrivalIndex(forecast []float64, entry, threshold float64, long bool) int {
	target := entry + threshold
	if !long {
		target = entry - threshold
	}
	for i, p := range forecast {
		if long && p >= target {
			return i
		}
		if !long && p <= target {
			return i
		}
	}
	return -1
}
