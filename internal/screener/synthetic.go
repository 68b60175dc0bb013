package screener

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// inDeadHours reports whether t falls in the 22:00-06:00 UTC window
// spec.md §4.4 widens the Strategy 5 threshold for.
func inDeadHours(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= 22 || h < 6
}

// synthetic computes Strategy 5's "synthetic intelligence" scorecard from
// the 1m/5m/1h rings: trend/momentum/volatility/structure blocks, an
// adaptive confidence threshold, and an echo-forecast veto.
func synthetic(st types.SymbolState, isMultiplier bool, lossStreak int, now time.Time) types.ScreenerScorecard {
	m1 := types.FloatCandles(st.Rings[types.Gran1m])
	m5 := types.FloatCandles(st.Rings[types.Gran5m])
	h1 := types.FloatCandles(st.Rings[types.Gran1h])

	trend := trendBlock(m5, h1)
	momentum := momentumBlock(m1, m5)
	vol := volatilityBlock(m5)
	structure := structureBlock(m5, st, isMultiplier)

	confidence := trend + momentum + vol + structure
	if confidence > 100 {
		confidence = 100
	}
	if confidence < -100 {
		confidence = -100
	}

	base := 72.0
	if isMultiplier {
		base = 68.0
	}
	threshold := base
	if inDeadHours(now) {
		threshold += 5
	}
	if lossStreak >= 3 {
		threshold += 5 * float64(lossStreak-2)
	}

	direction := types.DirectionCall
	if confidence < 0 {
		direction = types.DirectionPut
	}

	signal := types.SignalWait
	absConf := confidence
	if absConf < 0 {
		absConf = -absConf
	}
	if absConf >= threshold {
		if direction == types.DirectionCall {
			signal = types.SignalBuy
		} else {
			signal = types.SignalSell
		}
	}

	closes1h := indicators.Closes(h1)
	forecastPrices, correlation := indicators.EchoForecast(closes1h, 20, 10)
	_, _, final := indicators.ForecastExtremes(forecastPrices)
	if signal != types.SignalWait && len(closes1h) > 0 {
		lastPrice := closes1h[len(closes1h)-1]
		wantsUp := direction == types.DirectionCall
		forecastUp := final > lastPrice
		if wantsUp != forecastUp {
			signal = types.SignalWait
		}
	}

	return types.ScreenerScorecard{
		Confidence: confidence,
		Direction:  direction,
		Signal:     signal,
		Threshold:  threshold,
		Regime:     "synthetic_intelligence",
		Trend:      trend,
		Momentum:   momentum,
		Volatility: vol,
		Structure:  structure,
		ADX:        indicators.ADX(m5, 14),
		ATR:        indicators.ATR(h1, 14),
		ATR1m:      indicators.ATR(m1, 14),
		Forecast:   types.EchoForecast{ForecastPrices: forecastPrices, Correlation: correlation, Final: final},
		LastUpdate: now,
	}
}

func trendBlock(m5, h1 []types.FloatCandle) float64 {
	closes := indicators.Closes(m5)
	ema50 := indicators.EMA(closes, 50)
	ema200 := indicators.EMA(closes, 200)
	_, direction := indicators.SuperTrend(m5, 10, 3)
	adx := indicators.ADX(m5, 14)

	score := signOf(ema50-ema200) * 15
	if len(direction) > 0 {
		score += float64(direction[len(direction)-1]) * 15
	}
	if adx > 25 {
		score *= 1.3
	}
	if score > 30 {
		score = 30
	}
	if score < -30 {
		score = -30
	}
	return score
}

func momentumBlock(m1, m5 []types.FloatCandle) float64 {
	closes1 := indicators.Closes(m1)
	closes5 := indicators.Closes(m5)
	rsi := indicators.RSI(closes1, 14)
	stoch := indicators.Stochastic(m1, 14)
	macdSeries := indicators.MACDSeries(closes5, 12, 26)
	div := indicators.MACDDivergence(closes5, macdSeries, 10)

	score := oscillatorVote(rsi)*10 + oscillatorVote(stoch)*10 + float64(div)*10
	if score > 30 {
		score = 30
	}
	if score < -30 {
		score = -30
	}
	return score
}

func volatilityBlock(m5 []types.FloatCandle) float64 {
	closes := indicators.Closes(m5)
	upper, middle, lower := indicators.BollingerBands(closes, 20, 2)
	atr := indicators.ATR(m5, 14)
	bbScore := bollingerVote(closes[len(closes)-1], upper, middle, lower) * 10
	relATR := 0.0
	if middle != 0 {
		relATR = atr / middle
	}
	volScore := bbScore
	if relATR > 0.02 {
		volScore *= 0.5 // excess volatility dampens conviction
	}
	if volScore > 20 {
		volScore = 20
	}
	if volScore < -20 {
		volScore = -20
	}
	return volScore
}

func structureBlock(m5 []types.FloatCandle, st types.SymbolState, isMultiplier bool) float64 {
	if isMultiplier {
		ob := indicators.OrderBlock(m5)
		return float64(ob) * 20
	}
	highs, lows := indicators.Fractal(m5, 3)
	if len(highs) == 0 && len(lows) == 0 {
		return 0
	}
	last := m5[len(m5)-1].Close
	hiPrice, hiOK := indicators.NearestFractalPrice(m5, highs, len(m5)-1, true)
	loPrice, loOK := indicators.NearestFractalPrice(m5, lows, len(m5)-1, false)
	score := 0.0
	if hiOK && last > hiPrice {
		score += 15
	}
	if loOK && last < loPrice {
		score -= 15
	}
	return score
}
