package indicators

import "math"

// Fractal identifies swing-high/swing-low indices over a window of `w` bars
// on each side (spec.md §4.1). Requires N >= 2w+1.
func Fractal(candles []Candle, w int) (highs, lows []int) {
	n := len(candles)
	if n < 2*w+1 {
		return nil, nil
	}
	for i := w; i < n-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}

// NearestFractalPrice returns the price (high for swing-highs, low for
// swing-lows) of the most recent fractal at or before index upTo, used by
// the free-ride trailing-stop logic. isHigh selects which side of the
// candle to read; ok is false when no qualifying fractal exists.
func NearestFractalPrice(candles []Candle, indices []int, upTo int, isHigh bool) (price float64, ok bool) {
	best := -1
	for _, idx := range indices {
		if idx <= upTo && idx > best {
			best = idx
		}
	}
	if best < 0 {
		return 0, false
	}
	if isHigh {
		return candles[best].High, true
	}
	return candles[best].Low, true
}

// OrderBlock scans backward for an impulse candle (|body| > 2*mean(|body|,
// last 10)) and returns the index of the most recent opposite-colored
// candle in the 5 bars preceding it (spec.md §4.1). Returns -1 if none found.
func OrderBlock(candles []Candle) int {
	n := len(candles)
	if n < 11 {
		return -1
	}
	recent := candles[n-11 : n-1]
	var sumBody float64
	for _, c := range recent {
		sumBody += body(c)
	}
	meanBody := sumBody / float64(len(recent))
	impulse := -1
	for i := n - 1; i >= n-11 && i >= 0; i-- {
		if body(candles[i]) > 2*meanBody {
			impulse = i
			break
		}
	}
	if impulse < 0 {
		return -1
	}
	impulseBullish := bullish(candles[impulse])
	start := impulse - 5
	if start < 0 {
		start = 0
	}
	for i := impulse - 1; i >= start; i-- {
		if bullish(candles[i]) != impulseBullish {
			return i
		}
	}
	return -1
}

// FVG detects a three-bar fair-value gap ending at the last candle. Returns
// +1 bullish, -1 bearish, 0 none (spec.md §4.1).
func FVG(candles []Candle) int {
	n := len(candles)
	if n < 3 {
		return 0
	}
	a, _, c := candles[n-3], candles[n-2], candles[n-1]
	if a.High < c.Low {
		return 1
	}
	if a.Low > c.High {
		return -1
	}
	return 0
}

// SNRCluster collects local peak/trough levels over the trailing window
// (default last 100 candles) and clusters them into support/resistance
// zones, matching spec.md §4.1's clustering rule.
func SNRCluster(candles []Candle, window int) []SNRZoneSeed {
	if window <= 0 {
		window = 100
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	highs, lows := Fractal(candles, 2)
	var meanClose float64
	for _, c := range candles {
		meanClose += c.Close
	}
	if len(candles) > 0 {
		meanClose /= float64(len(candles))
	}
	tolerance := 0.0005 * meanClose

	type level struct {
		price    float64
		resist   bool
		touches  int
	}
	var levels []level
	addLevel := func(price float64, resist bool) {
		for i := range levels {
			if math.Abs(levels[i].price-price) < tolerance {
				levels[i].touches++
				if levels[i].resist != resist {
					levels[i].resist = resist // the latest observation's side wins; no flip marker is kept
				}
				return
			}
		}
		levels = append(levels, level{price: price, resist: resist, touches: 1})
	}
	for _, idx := range highs {
		addLevel(candles[idx].High, true)
	}
	for _, idx := range lows {
		addLevel(candles[idx].Low, false)
	}

	var zones []SNRZoneSeed
	for _, l := range levels {
		if l.touches < 2 {
			continue
		}
		zones = append(zones, SNRZoneSeed{Price: l.price, Resistance: l.resist, Touches: l.touches})
	}
	return zones
}

// SNRZoneSeed is the clustering output before it's merged into a
// SymbolState's persistent SNRZone (which additionally tracks lifetime
// touches across multiple clustering passes).
type SNRZoneSeed struct {
	Price      float64
	Resistance bool
	Touches    int
}

// StructuralRR computes structural reward:risk from forecast prices and
// the intended direction (spec.md §4.1). Caps risk-free setups at 10.
func StructuralRR(current float64, forecastPrices []float64, long bool) float64 {
	if len(forecastPrices) == 0 {
		return 0
	}
	hi, lo := forecastPrices[0], forecastPrices[0]
	for _, p := range forecastPrices {
		if p > hi {
			hi = p
		}
		if p < lo {
			lo = p
		}
	}
	var reward, risk float64
	if long {
		reward = hi - current
		risk = current - lo
	} else {
		reward = current - lo
		risk = hi - current
	}
	if risk <= 0 {
		return 10
	}
	return reward / risk
}
