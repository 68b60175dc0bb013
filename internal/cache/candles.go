package cache

import "github.com/quantedge/derivengine/pkg/types"

// ApplyCandleBatch installs a full history fetch result, replacing the ring
// for (symbol, granularity) outright (spec.md §4.3 "batch replace" rule).
// Used for the initial ticks_history response and for periodic refetches of
// auxiliary timeframes the tick stream doesn't assemble directly.
func (c *Cache) ApplyCandleBatch(symbol string, g types.Granularity, candles []types.Candle) {
	if len(candles) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		st = newSymbolState(symbol)
		c.symbols[symbol] = st
	}

	ringCap := types.RingCap(g)
	ring := append([]types.Candle(nil), candles...)
	if len(ring) > ringCap {
		ring = ring[len(ring)-ringCap:]
	}
	st.Rings[g] = ring

	if g == c.htfGranularity {
		c.setHTFOpenLocked(st, ring[len(ring)-1])
	}
}

// AppendClosedCandle merges a single freshly-closed candle into the ring for
// (symbol, granularity): replace-tail if its epoch matches the current last
// entry (a correction), append if strictly newer, drop silently if older or
// equal to an earlier entry (spec.md §4.3 monotonicity invariant).
func (c *Cache) AppendClosedCandle(symbol string, g types.Granularity, candle types.Candle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.symbols[symbol]
	if !ok {
		st = newSymbolState(symbol)
		c.symbols[symbol] = st
	}

	ring := st.Rings[g]
	switch {
	case len(ring) == 0:
		st.Rings[g] = []types.Candle{candle}
	case candle.Epoch == ring[len(ring)-1].Epoch:
		ring[len(ring)-1] = candle
	case candle.Epoch > ring[len(ring)-1].Epoch:
		ring = append(ring, candle)
		if ringCap := types.RingCap(g); len(ring) > ringCap {
			ring = ring[len(ring)-ringCap:]
		}
		st.Rings[g] = ring
	default:
		return false
	}

	if g == c.htfGranularity {
		c.setHTFOpenLocked(st, candle)
	}
	return true
}

// setHTFOpenLocked records the higher-timeframe reference open and its
// bucket epoch. Caller must hold c.mu.
func (c *Cache) setHTFOpenLocked(st *types.SymbolState, htf types.Candle) {
	st.HTFOpen = htf.Open.InexactFloat64()
	st.HasHTFOpen = true
	st.HTFEpoch = htf.Epoch
}
