package indicators

import "math"

// CandlePattern is a classified candlestick formation. Priority order when
// more than one would match is fixed: marubozu > pin > engulfing > harami >
// tweezer > doji (spec.md §4.1, preserved as a table-driven predicate list
// per spec.md §9's re-architecture note).
type CandlePattern string

const (
	PatternNone            CandlePattern = ""
	PatternMarubozu        CandlePattern = "marubozu"
	PatternBullishPin      CandlePattern = "bullish_pin"
	PatternBearishPin      CandlePattern = "bearish_pin"
	PatternBullishEngulfing CandlePattern = "bullish_engulfing"
	PatternBearishEngulfing CandlePattern = "bearish_engulfing"
	PatternBullishHarami   CandlePattern = "bullish_harami"
	PatternBearishHarami   CandlePattern = "bearish_harami"
	PatternTweezerTop      CandlePattern = "tweezer_top"
	PatternTweezerBottom   CandlePattern = "tweezer_bottom"
	PatternDoji            CandlePattern = "doji"
)

func body(c Candle) float64  { return math.Abs(c.Close - c.Open) }
func crange(c Candle) float64 { return c.High - c.Low }
func bullish(c Candle) bool  { return c.Close > c.Open }

type patternPredicate struct {
	label CandlePattern
	test  func(prev, cur Candle) (CandlePattern, bool)
}

var patternPredicates = []patternPredicate{
	{PatternMarubozu, func(_, cur Candle) (CandlePattern, bool) {
		r := crange(cur)
		if r <= 0 {
			return PatternNone, false
		}
		return PatternMarubozu, body(cur) > 0.9*r
	}},
	{PatternBullishPin, func(_, cur Candle) (CandlePattern, bool) {
		r := crange(cur)
		if r <= 0 || body(cur) >= 0.35*r {
			return PatternNone, false
		}
		upperWick := cur.High - math.Max(cur.Open, cur.Close)
		lowerWick := math.Min(cur.Open, cur.Close) - cur.Low
		if lowerWick > 0.6*r {
			return PatternBullishPin, true
		}
		if upperWick > 0.6*r {
			return PatternBearishPin, true
		}
		return PatternNone, false
	}},
	{PatternBullishEngulfing, func(prev, cur Candle) (CandlePattern, bool) {
		if body(cur) <= body(prev) {
			return PatternNone, false
		}
		if bullish(cur) && prev.Close < prev.Open && cur.Open <= prev.Close && cur.Close >= prev.Open {
			return PatternBullishEngulfing, true
		}
		if !bullish(cur) && bullish(prev) && cur.Open >= prev.Close && cur.Close <= prev.Open {
			return PatternBearishEngulfing, true
		}
		return PatternNone, false
	}},
	{PatternBullishHarami, func(prev, cur Candle) (CandlePattern, bool) {
		if body(cur) >= 0.5*body(prev) {
			return PatternNone, false
		}
		hi, lo := math.Max(prev.Open, prev.Close), math.Min(prev.Open, prev.Close)
		curHi, curLo := math.Max(cur.Open, cur.Close), math.Min(cur.Open, cur.Close)
		if curHi > hi || curLo < lo {
			return PatternNone, false
		}
		if bullish(cur) {
			return PatternBullishHarami, true
		}
		return PatternBearishHarami, true
	}},
	{PatternTweezerTop, func(prev, cur Candle) (CandlePattern, bool) {
		const tol = 0.0005
		if math.Abs(cur.High-prev.High) > tol*prev.High {
			return PatternNone, false
		}
		if bullish(prev) && !bullish(cur) {
			return PatternTweezerTop, true
		}
		if math.Abs(cur.Low-prev.Low) <= tol*prev.Low && prev.Close < prev.Open && bullish(cur) {
			return PatternTweezerBottom, true
		}
		return PatternNone, false
	}},
	{PatternDoji, func(_, cur Candle) (CandlePattern, bool) {
		r := crange(cur)
		if r <= 0 {
			return PatternNone, false
		}
		return PatternDoji, body(cur) < 0.1*r
	}},
}

// ClassifyPattern returns at most one label for the last two candles in the
// sequence, following the fixed priority order. Returns PatternNone when
// fewer than 2 candles are available or no predicate matches.
func ClassifyPattern(candles []Candle) CandlePattern {
	n := len(candles)
	if n < 2 {
		return PatternNone
	}
	prev, cur := candles[n-2], candles[n-1]
	for _, p := range patternPredicates {
		if label, ok := p.test(prev, cur); ok {
			return label
		}
	}
	return PatternNone
}

// IsBullishPattern reports whether a classified pattern favors the long
// side. Marubozu and doji carry no directional bias of their own and report
// false; the candle's close-vs-open is not consulted.
func IsBullishPattern(pattern CandlePattern) bool {
	switch pattern {
	case PatternBullishPin, PatternBullishEngulfing, PatternBullishHarami, PatternTweezerBottom:
		return true
	default:
		return false
	}
}

// ScoreReversalPattern assigns a 0..3 strength score to a classified pattern,
// used by Strategy 4 to gate SNR-zone reversal entries (spec.md §4.5).
func ScoreReversalPattern(pattern CandlePattern) int {
	switch pattern {
	case PatternMarubozu:
		return 3
	case PatternBullishEngulfing, PatternBearishEngulfing:
		return 3
	case PatternBullishPin, PatternBearishPin, PatternTweezerTop, PatternTweezerBottom:
		return 2
	case PatternBullishHarami, PatternBearishHarami:
		return 2
	case PatternDoji:
		return 1
	default:
		return 0
	}
}
