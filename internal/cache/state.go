package cache

import "github.com/quantedge/derivengine/pkg/types"

// DedupKey reports whether an Open intent has already been recorded for
// this symbol's current LTF boundary (spec.md's last_trade_ltf dedup key,
// preserved across reconnects since it lives on SymbolState, not the
// broker session).
func (c *Cache) DedupKey(symbol string, ltfEpoch int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return false
	}
	return st.HasLastTradeLTF && st.LastTradeLTF == ltfEpoch
}

// MarkTraded records the LTF boundary an Open intent was just emitted for.
func (c *Cache) MarkTraded(symbol string, ltfEpoch int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	st.LastTradeLTF = ltfEpoch
	st.HasLastTradeLTF = true
}

// RecordOutcome updates the consecutive win/loss counters on contract close.
func (c *Cache) RecordOutcome(symbol string, won bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	if won {
		st.ConsecutiveWins++
		st.ConsecutiveLosses = 0
	} else {
		st.ConsecutiveLosses++
		st.ConsecutiveWins = 0
	}
}

// RecordCross updates Strategy 1's daily htf_open cross counter and side.
func (c *Cache) RecordCross(symbol string, side types.Side, dayEpoch int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	if !st.HasLastCrossSide || st.LastCrossSide != side {
		st.DailyCrosses++
	}
	st.LastCrossSide = side
	st.HasLastCrossSide = true
}

// ResetDailyCrosses clears Strategy 1's per-day cross counter on rollover.
func (c *Cache) ResetDailyCrosses(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.symbols[symbol]; ok {
		st.DailyCrosses = 0
		st.HasLastCrossSide = false
	}
}

// RecordHourlyTrade increments the per-hour trade counter, resetting it when
// the wall-clock hour has advanced since the last recorded trade.
func (c *Cache) RecordHourlyTrade(symbol string, hour int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	if st.LastTradeHour != hour {
		st.HourlyTradeCount = 0
		st.LastTradeHour = hour
	}
	st.HourlyTradeCount++
}

// SetSNRZones replaces the cached SNR zones for a symbol, dropping any zone
// whose lifetime touch count has retired it.
func (c *Cache) SetSNRZones(symbol string, zones []types.SNRZone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	live := make([]types.SNRZone, 0, len(zones))
	for _, z := range zones {
		if !z.Retired() {
			live = append(live, z)
		}
	}
	st.SNRZones = live
}

// SetStructuralIndices replaces the cached fractal/order-block/FVG indices.
func (c *Cache) SetStructuralIndices(symbol string, fractals, orderBlocks, fvgs []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	st.Fractals = fractals
	st.OrderBlocks = orderBlocks
	st.FVGs = fvgs
}

// SetScorecard records the screener's latest composite read for a symbol.
func (c *Cache) SetScorecard(symbol string, scorecard types.ScreenerScorecard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return
	}
	st.Scorecard = scorecard
	st.HasScorecard = true
}

// SetStrat7Cache records Strategy 7's per-timeframe recommendation cache.
func (c *Cache) SetStrat7Cache(symbol string, cache types.Strat7Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.symbols[symbol]; ok {
		st.Strat7Cache = cache
	}
}
