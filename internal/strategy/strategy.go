// Package strategy implements the seven pluggable entry/exit rules the
// Strategy Evaluator consults once per tick and once per LTF close
// (spec.md §4.5).
package strategy

import (
	"time"

	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/pkg/types"
)

// Evaluator runs the active strategy's entry/exit rule against a symbol's
// cached state. Stateless beyond the cache it reads from; the dedup key
// itself lives on SymbolState (spec.md §4.5), not here.
type Evaluator struct {
	cache *cache.Cache
}

// NewEvaluator constructs an Evaluator reading from c.
func NewEvaluator(c *cache.Cache) *Evaluator {
	return &Evaluator{cache: c}
}

// Evaluate implements the evaluate(symbol, is_candle_close, cache,
// screener) -> Intent contract of spec.md §4.5.
func (e *Evaluator) Evaluate(symbol string, isCandleClose bool, now time.Time, cfg types.Configuration, metrics types.SessionMetrics, openContracts []types.Contract) Intent {
	snap, ok := e.cache.Snapshot(symbol)
	if !ok {
		return noneIntent
	}

	ltf := ltfFor(cfg)
	ltfEpoch := currentBoundary(now, ltf)
	if e.cache.DedupKey(symbol, ltfEpoch) {
		return noneIntent
	}

	if dailyPnL := metrics.DailyPnLPct(); dailyPnL <= -cfg.MaxDailyLossPct || dailyPnL >= cfg.MaxDailyProfitPct {
		return Intent{Kind: IntentNone, RiskTripped: true}
	}

	hasOpen := false
	var openContract types.Contract
	for _, c := range openContracts {
		if c.Symbol == symbol {
			hasOpen = true
			openContract = c
			break
		}
	}

	var intent Intent
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		intent = e.strategy1(now, cfg, snap)
	case types.Strategy2:
		intent = e.strategy2(now, cfg, snap)
	case types.Strategy3:
		intent = e.strategy3(now, snap)
	case types.Strategy4:
		intent = e.strategy4(isCandleClose, symbol, snap)
	case types.Strategy5, types.Strategy6, types.Strategy7:
		intent = e.screenerDriven(now, cfg, snap)
	default:
		return noneIntent
	}

	if !isCandleClose && requiresCandleClose(cfg.ActiveStrategy) {
		return noneIntent
	}

	if intent.Kind == IntentOpen {
		if hasOpen {
			if openContract.Side == intent.Side {
				return noneIntent // same-side: drop (spec.md §4.7)
			}
			// opposite-side: Execution closes the existing contract, then
			// opens this one; the evaluator's job is just to signal intent.
		}
		e.cache.MarkTraded(symbol, ltfEpoch)
	} else if hasOpen && intent.Kind == IntentNone {
		// no strategy-level exit fired; the Position Monitor still owns
		// TP/SL/force-close/ghost-cleanup independently of the evaluator.
	}

	return intent
}

// requiresCandleClose reports whether a strategy only acts on LTF close
// (S1 and S4 per spec.md §4.5; the other strategies also act on ticks).
func requiresCandleClose(s types.Strategy) bool {
	return s == types.Strategy1 || s == types.Strategy4
}

func currentBoundary(now time.Time, g types.Granularity) int64 {
	sec := now.Unix()
	gi := int64(g)
	return (sec / gi) * gi
}

// ltfFor/htfFor mirror the screener package's per-strategy timeframe
// mapping (duplicated rather than imported: a one-line lookup table isn't
// worth a cross-package dependency here).
func ltfFor(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran15m
	case types.Strategy2:
		return types.Gran3m
	case types.Strategy3, types.Strategy4:
		return types.Gran1m
	default:
		return types.Gran1m
	}
}

func htfFor(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran1d
	case types.Strategy2:
		return types.Gran1h
	case types.Strategy3:
		return types.Gran15m
	case types.Strategy4:
		return types.Gran5m
	default:
		return types.Gran1h
	}
}

func secondsToNextBoundary(now time.Time, g types.Granularity) int64 {
	gi := int64(g)
	sec := now.Unix()
	next := ((sec / gi) + 1) * gi
	return next - sec
}

func secondsToUTCMidnight(now time.Time) int64 {
	n := now.UTC()
	midnight := time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, time.UTC)
	return int64(midnight.Sub(n).Seconds())
}
