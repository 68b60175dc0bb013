package engine

import (
	"context"
	"time"

	"github.com/quantedge/derivengine/pkg/types"
)

// screenerLoop periodically submits every tracked symbol to the screener
// scorer. Strategy 7 scores on a slower cadence (spec.md SPEC_FULL §3.4)
// since its alignment check spans three timeframes and doesn't need
// re-evaluating every 10s.
func (e *Engine) screenerLoop(ctx context.Context) {
	ticker := time.NewTicker(screenerInterval)
	defer ticker.Stop()

	var strat7Tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cfg := e.Config()
			if cfg.ActiveStrategy == types.Strategy7 {
				strat7Tick++
				if time.Duration(strat7Tick)*screenerInterval < screenerIntervalStrat7 {
					continue
				}
				strat7Tick = 0
			}
			e.submitScreener(cfg)
		}
	}
}

func (e *Engine) submitScreener(cfg types.Configuration) {
	for _, symbol := range e.cache.Symbols() {
		symbol := symbol
		lossStreak := e.symbolLossStreak(symbol)
		e.metricsReg.ScreenerJobs.Inc()
		e.screener.Submit(symbol, cfg, lossStreak, func(sc types.ScreenerScorecard) {
			e.emit(EventScreenerUpdate, ScreenerUpdate{Symbol: symbol, Data: sc})
		})
	}
}

func (e *Engine) symbolLossStreak(symbol string) int {
	snap, ok := e.cache.Snapshot(symbol)
	if !ok {
		return 0
	}
	return snap.ConsecutiveLosses
}

// monitorSweepLoop periodically resends overdue sell requests and drops
// ghost contracts the broker never acknowledged closing (spec.md §4.6).
func (e *Engine) monitorSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(monitorSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			b := e.currentBroker()
			for _, contractID := range e.monitor.CheckRetries(now) {
				if err := b.SellContract(contractID); err == nil {
					e.monitor.MarkClosing(contractID, now)
				}
			}
			for _, contractID := range e.monitor.GhostCleanup(now) {
				e.log("warn", "dropped ghost contract "+contractID)
			}
			e.publishPositionUpdate()
		}
	}
}
