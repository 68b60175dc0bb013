// Package cache implements the Market Data Cache: per-symbol OHLC ring
// buffers, in-progress candle assembly from ticks, and higher-timeframe
// open tracking (spec.md §4.3).
package cache

import (
	"sync"
	"time"

	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
)

// Cache holds map[symbol]*SymbolState under single-writer discipline: only
// the engine worker calls the mutating methods below. Reader methods return
// copies, never the live struct (spec.md §3, §5).
type Cache struct {
	logger *zap.Logger

	mu      sync.RWMutex
	symbols map[string]*types.SymbolState

	// ltfGranularity/htfGranularity are the active strategy's configured
	// timeframes; only these two are assembled from ticks. Other
	// granularities are populated purely from fetched Candles events.
	ltfGranularity types.Granularity
	htfGranularity types.Granularity

	// lastDayUTC is the UTC day number (epoch/86400) of the most recent
	// tick seen, used to detect daily rollover across all symbols (-1 before
	// the first tick).
	lastDayUTC int64
}

// New constructs an empty cache.
func New(logger *zap.Logger) *Cache {
	return &Cache{
		logger:     logger.Named("cache"),
		symbols:    make(map[string]*types.SymbolState),
		lastDayUTC: -1,
	}
}

// SetActiveGranularities tells the cache which two granularities are
// tick-assembled for the active strategy (its LTF and HTF). Called on
// strategy change.
func (c *Cache) SetActiveGranularities(ltf, htf types.Granularity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ltfGranularity = ltf
	c.htfGranularity = htf
}

// EnsureSymbol creates empty state for a symbol if absent, and resets it if
// present (used when a symbol is subscribed; strategy changes use
// ResetSymbol).
func (c *Cache) EnsureSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols[symbol] = newSymbolState(symbol)
}

// DropSymbol removes a symbol's state (used when a symbol is unsubscribed).
func (c *Cache) DropSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.symbols, symbol)
}

// ResetSymbol clears a symbol's ring/counters but preserves nothing — used
// on a strategy change that invalidates cached TA state.
func (c *Cache) ResetSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.symbols[symbol]; ok {
		c.symbols[symbol] = newSymbolState(symbol)
	}
}

func newSymbolState(symbol string) *types.SymbolState {
	return &types.SymbolState{
		Symbol:     symbol,
		Rings:      make(map[types.Granularity][]types.Candle),
		InProgress: make(map[types.Granularity]types.InProgressCandle),
	}
}

// Symbols returns the currently tracked symbol list.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// Snapshot returns a deep-enough copy of a symbol's state for read-only
// consumers (screener, strategy evaluator, HTTP status handler). Returns
// false if the symbol is unknown.
func (c *Cache) Snapshot(symbol string) (types.SymbolState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return types.SymbolState{}, false
	}
	return copyState(st), true
}

func copyState(st *types.SymbolState) types.SymbolState {
	cp := *st
	cp.Rings = make(map[types.Granularity][]types.Candle, len(st.Rings))
	for g, ring := range st.Rings {
		r := make([]types.Candle, len(ring))
		copy(r, ring)
		cp.Rings[g] = r
	}
	cp.InProgress = make(map[types.Granularity]types.InProgressCandle, len(st.InProgress))
	for g, ip := range st.InProgress {
		cp.InProgress[g] = ip
	}
	cp.SNRZones = append([]types.SNRZone(nil), st.SNRZones...)
	cp.Fractals = append([]int(nil), st.Fractals...)
	cp.OrderBlocks = append([]int(nil), st.OrderBlocks...)
	cp.FVGs = append([]int(nil), st.FVGs...)
	return cp
}

// RingFor returns a copy of the closed-candle ring for (symbol, granularity).
func (c *Cache) RingFor(symbol string, g types.Granularity) []types.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.symbols[symbol]
	if !ok {
		return nil
	}
	ring := st.Rings[g]
	out := make([]types.Candle, len(ring))
	copy(out, ring)
	return out
}

// bucketStart floors t to the granularity boundary (spec.md invariant 2).
func bucketStart(t time.Time, g types.Granularity) int64 {
	sec := t.Unix()
	gi := int64(g)
	return (sec / gi) * gi
}
