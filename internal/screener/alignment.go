package screener

import (
	"strings"
	"time"

	"github.com/quantedge/derivengine/pkg/types"
)

// granularityFromLabel maps a configuration timeframe label ("1m", "15m",
// "1h", ...) to a Granularity. "OFF" (case-insensitive) reports ok=false.
func granularityFromLabel(label string) (types.Granularity, bool) {
	switch strings.ToUpper(label) {
	case "1M":
		return types.Gran1m, true
	case "3M":
		return types.Gran3m, true
	case "5M":
		return types.Gran5m, true
	case "15M":
		return types.Gran15m, true
	case "1H":
		return types.Gran1h, true
	case "4H":
		return types.Gran4h, true
	case "1D":
		return types.Gran1d, true
	default:
		return 0, false
	}
}

// sideOf reduces a TASignal to its directional side ("BUY"/"SELL"/"") and
// reports whether it was a STRONG_* band.
func sideOf(rec TASignal) (side string, strong bool) {
	switch rec {
	case Buy:
		return "BUY", false
	case StrongBuy:
		return "BUY", true
	case Sell:
		return "SELL", false
	case StrongSell:
		return "SELL", true
	default:
		return "", false
	}
}

// recommendationOf derives a single-timeframe TA recommendation, collapsing
// STRONG_* bands to plain BUY/SELL when singleTF is true (spec.md §4.4:
// "single-TF mode treats STRONG_* as plain BUY/SELL").
func recommendationOf(st types.SymbolState, g types.Granularity, singleTF bool) TASignal {
	_, rec := CompositeVote(types.FloatCandles(st.Rings[g]))
	if singleTF {
		switch rec {
		case StrongBuy:
			return Buy
		case StrongSell:
			return Sell
		}
	}
	return rec
}

// alignStrategy7 implements the multi-TF alignment strategy and the §5
// Open Question resolution for the small timeframe's OFF state: only the
// small TF's OFF is special-cased (mid/high OFF is not read by the original
// at all). When small is OFF, evaluate mid+high alignment directly with no
// pullback debounce. When small is configured, require high+mid agreement
// on a direction AND a fresh agreement edge on small this tick (a debounced
// "just flipped into agreement" trigger, not a level trigger).
func alignStrategy7(cfg types.Configuration, st types.SymbolState, now time.Time) (types.ScreenerScorecard, types.Strat7Cache) {
	smallG, smallOn := granularityFromLabel(cfg.Strat7SmallTF)
	midG, midOn := granularityFromLabel(cfg.Strat7MidTF)
	highG, highOn := granularityFromLabel(cfg.Strat7HighTF)

	enabledCount := 0
	for _, on := range []bool{smallOn, midOn, highOn} {
		if on {
			enabledCount++
		}
	}
	singleTF := enabledCount <= 1

	var midRec, highRec, smallRec TASignal = Neutral, Neutral, Neutral
	if midOn {
		midRec = recommendationOf(st, midG, singleTF)
	}
	if highOn {
		highRec = recommendationOf(st, highG, singleTF)
	}
	if smallOn {
		smallRec = recommendationOf(st, smallG, singleTF)
	}

	cacheOut := types.Strat7Cache{Mid: string(midRec), High: string(highRec), Small: string(smallRec), Timestamp: now}

	var label string
	var signal types.ScreenerSignal
	var direction types.Direction

	if !smallOn {
		switch {
		case midOn && highOn && midRec == Buy && highRec == Buy:
			label, signal, direction = "ALIGNED_BUY", types.SignalBuy, types.DirectionCall
		case midOn && highOn && midRec == Sell && highRec == Sell:
			label, signal, direction = "ALIGNED_SELL", types.SignalSell, types.DirectionPut
		default:
			label, signal = "WAIT", types.SignalWait
		}
	} else {
		highSide, highStrong := sideOf(highRec)
		midSide, _ := sideOf(midRec)
		smallSide, _ := sideOf(smallRec)
		prevSide, _ := sideOf(TASignal(st.Strat7Cache.Small))

		agree := highOn && midOn && highSide != "" && highSide == midSide
		freshAgreement := agree && smallSide == highSide && prevSide != highSide

		switch {
		case freshAgreement && highSide == "BUY" && highStrong:
			label, signal, direction = "QUICK_BUY", types.SignalBuy, types.DirectionCall
		case freshAgreement && highSide == "SELL" && highStrong:
			label, signal, direction = "QUICK_SELL", types.SignalSell, types.DirectionPut
		case freshAgreement && highSide == "BUY":
			label, signal, direction = "ALIGNED_BUY", types.SignalBuy, types.DirectionCall
		case freshAgreement && highSide == "SELL":
			label, signal, direction = "ALIGNED_SELL", types.SignalSell, types.DirectionPut
		default:
			label, signal = "WAIT", types.SignalWait
		}
	}

	confidence := 0.0
	if signal != types.SignalWait {
		confidence = 75
	}

	return types.ScreenerScorecard{
		Confidence: confidence,
		Direction:  direction,
		Signal:     signal,
		Threshold:  70,
		Regime:     label,
		LastUpdate: now,
	}, cacheOut
}
