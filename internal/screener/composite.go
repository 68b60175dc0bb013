package screener

import (
	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// TASignal is the richer five-band technical-analysis recommendation the
// crossover family (S1-3) and the multi-TF alignment strategy (S7) work
// with, distinct from the coarser BUY/SELL/WAIT ScreenerSignal the
// scorecard exposes externally.
type TASignal string

const (
	StrongBuy  TASignal = "STRONG_BUY"
	Buy        TASignal = "BUY"
	Neutral    TASignal = "NEUTRAL"
	Sell       TASignal = "SELL"
	StrongSell TASignal = "STRONG_SELL"
)

// bandRecommendation maps a [-1,1] composite tally to a TASignal using the
// thresholds named in spec.md §4.4: |score| >= 0.5 is STRONG_*, >= 0.1 is
// plain BUY/SELL, otherwise NEUTRAL.
func bandRecommendation(tally float64) TASignal {
	abs := tally
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 0.5 && tally > 0:
		return StrongBuy
	case abs >= 0.5:
		return StrongSell
	case abs >= 0.1 && tally > 0:
		return Buy
	case abs >= 0.1:
		return Sell
	default:
		return Neutral
	}
}

// emaPeriods and smaPeriods together make up the 15 "moving average" votes
// of the 26-indicator composite (spec.md §4.4: "11 oscillators + 15 moving
// averages").
// Periods are bounded by internal/cache's smallest ring capacity (120
// entries for the 1-minute granularity, spec.md §3's "lower for short TFs")
// so the composite vote degrades gracefully rather than starving on the
// fastest-moving strategies' LTF.
var emaPeriods = []int{5, 8, 10, 12, 20, 26, 50, 65, 80, 100, 120}
var smaPeriods = []int{10, 20, 50, 100}

// rsiPeriods and stochPeriods make up 7 of the 11 oscillator votes; the
// remaining 4 are MACD histogram sign, MACD divergence, a Bollinger-position
// vote, and an ADX-weighted EMA12/EMA26 slope vote.
var rsiPeriods = []int{7, 14, 21}
var stochPeriods = []int{5, 9, 14, 21}

// CompositeVote runs the 26-indicator vote over a closed-candle series and
// returns the tally in [-1,1] plus the banded recommendation.
func CompositeVote(candles []types.FloatCandle) (tally float64, rec TASignal) {
	if len(candles) < 120 {
		return 0, Neutral
	}
	closes := indicators.Closes(candles)
	price := closes[len(closes)-1]

	var votes []float64

	for _, p := range rsiPeriods {
		rsi := indicators.RSI(closes, p)
		votes = append(votes, oscillatorVote(rsi))
	}
	for _, p := range stochPeriods {
		stoch := indicators.Stochastic(candles, p)
		votes = append(votes, oscillatorVote(stoch))
	}

	_, _, hist := indicators.MACD(closes, 12, 26, 9)
	votes = append(votes, signOf(hist))

	macdSeries := indicators.MACDSeries(closes, 12, 26)
	votes = append(votes, float64(indicators.MACDDivergence(closes, macdSeries, 10)))

	upper, middle, lower := indicators.BollingerBands(closes, 20, 2)
	votes = append(votes, bollingerVote(price, upper, middle, lower))

	adx := indicators.ADX(candles, 14)
	ema12 := indicators.EMA(closes, 12)
	ema26 := indicators.EMA(closes, 26)
	trendVote := signOf(ema12 - ema26)
	if adx <= 25 {
		trendVote *= 0.5 // weak trend, dampen the directional vote
	}
	votes = append(votes, trendVote)

	for _, p := range emaPeriods {
		ema := indicators.EMA(closes, p)
		votes = append(votes, signOf(price-ema))
	}
	for _, p := range smaPeriods {
		sma := indicators.SMA(closes, p)
		votes = append(votes, signOf(price-sma))
	}

	var sum float64
	for _, v := range votes {
		sum += v
	}
	tally = sum / float64(len(votes))
	return tally, bandRecommendation(tally)
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// oscillatorVote treats >70 as overbought (sell pressure), <30 as oversold
// (buy pressure), scaling linearly through neutral at 50.
func oscillatorVote(value float64) float64 {
	v := (value - 50) / 50
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return -v // overbought (high value) votes sell, oversold votes buy
}

func bollingerVote(price, upper, middle, lower float64) float64 {
	if upper == lower {
		return 0
	}
	if price >= upper {
		return -1
	}
	if price <= lower {
		return 1
	}
	if price > middle {
		return 0.25
	}
	return -0.25
}
