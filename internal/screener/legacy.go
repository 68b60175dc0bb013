package screener

import (
	"time"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

const legacyThreshold = 60.0

// legacyWeighted computes Strategy 6's "legacy v1" scorecard: the same four
// blocks as Strategy 5 but weighted (trend x3, momentum x2, vol x1,
// structure x2) over 1m/1h/4h, with a fixed threshold and an echo veto.
func legacyWeighted(st types.SymbolState, now time.Time) types.ScreenerScorecard {
	m1 := types.FloatCandles(st.Rings[types.Gran1m])
	h1 := types.FloatCandles(st.Rings[types.Gran1h])
	h4 := types.FloatCandles(st.Rings[types.Gran4h])

	trend := trendBlock(h1, h4) * 3
	momentum := momentumBlock(m1, h1) * 2
	vol := volatilityBlock(h1) * 1
	structure := structureBlock(h1, st, false) * 2

	confidence := trend + momentum + vol + structure
	if confidence > 100 {
		confidence = 100
	}
	if confidence < -100 {
		confidence = -100
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
	if absConf >= legacyThreshold {
		if direction == types.DirectionCall {
			signal = types.SignalBuy
		} else {
			signal = types.SignalSell
		}
	}

	closesH1 := indicators.Closes(h1)
	forecastPrices, correlation := indicators.EchoForecast(closesH1, 20, 10)
	_, _, final := indicators.ForecastExtremes(forecastPrices)
	if signal != types.SignalWait && len(closesH1) > 0 {
		lastPrice := closesH1[len(closesH1)-1]
		wantsUp := direction == types.DirectionCall
		if (final > lastPrice) != wantsUp {
			signal = types.SignalWait
		}
	}

	return types.ScreenerScorecard{
		Confidence: confidence,
		Direction:  direction,
		Signal:     signal,
		Threshold:  legacyThreshold,
		Regime:     "legacy_v1",
		Trend:      trend,
		Momentum:   momentum,
		Volatility: vol,
		Structure:  structure,
		ADX:        indicators.ADX(h1, 14),
		ATR:        indicators.ATR(h1, 14),
		ATR1m:      indicators.ATR(m1, 14),
		Forecast:   types.EchoForecast{ForecastPrices: forecastPrices, Correlation: correlation, Final: final},
		LastUpdate: now,
	}
}
