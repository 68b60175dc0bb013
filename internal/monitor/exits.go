package monitor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/pkg/types"
)

// Evaluate applies the Active -> Closing transition rules for every open
// contract on symbol: computed TP/SL (profit-field primary, price-level
// fail-safe secondary), the force-close timer, and the strategy-coupled
// exits of spec.md §4.6. Returns the IDs that should be sold now.
func (m *Monitor) Evaluate(symbol string, price float64, cfg types.Configuration, now time.Time) []string {
	snap, hasSnap := m.cache.Snapshot(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	var toClose []string
	for id, c := range m.contracts {
		if c.Symbol != symbol || c.Status != types.ContractStatusActive {
			continue
		}

		if m.shouldCloseLocked(c, price, cfg, now, snap, hasSnap) {
			toClose = append(toClose, id)
		}
	}
	return toClose
}

func (m *Monitor) shouldCloseLocked(c *types.Contract, price float64, cfg types.Configuration, now time.Time, snap types.SymbolState, hasSnap bool) bool {
	long := c.Side == types.SideLong

	tpUSD, slUSD := thresholdsUSD(cfg, c.Stake)
	if cfg.TPEnabled && !c.PnL.LessThan(tpUSD) {
		return true
	}
	if cfg.SLEnabled && !c.PnL.GreaterThan(slUSD.Neg()) {
		return true
	}

	if c.HasTPPrice && priceReached(price, c.TPPrice, long, true) {
		return true
	}
	if c.HasSLPrice && priceReached(price, c.SLPrice, long, false) {
		return true
	}

	if cfg.ForceCloseEnabled && c.HasPurchaseTime && now.Sub(c.PurchaseTime) >= cfg.ForceCloseDuration {
		return true
	}

	if !hasSnap {
		return false
	}

	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return m.strategy1Exit(c, price, long, snap)
	case types.Strategy5, types.Strategy7:
		return m.freerideExit(c, long, snap)
	default:
		return false
	}
}

// priceReached reports whether price has crossed target in the direction
// that matters: favorably for a take-profit, adversely for a stop-loss.
func priceReached(price float64, target decimal.Decimal, long, isTP bool) bool {
	wantsUp := long == isTP // long TP or short SL both fire when price rises past target
	p := decimal.NewFromFloat(price)
	if wantsUp {
		return !p.LessThan(target)
	}
	return !p.GreaterThan(target)
}

// strategy1Exit closes when price crosses back across the daily htf_open
// reference, or favorable profit reaches 2x the daily ATR (spec.md §4.6).
func (m *Monitor) strategy1Exit(c *types.Contract, price float64, long bool, snap types.SymbolState) bool {
	if snap.HasHTFOpen {
		if long && price < snap.HTFOpen {
			return true
		}
		if !long && price > snap.HTFOpen {
			return true
		}
	}

	daily := types.FloatCandles(snap.Rings[types.Gran1d])
	if len(daily) < 15 || !c.HasEntryPrice {
		return false
	}
	atr := indicators.ATR(daily, 14)
	if atr <= 0 {
		return false
	}
	move := price - c.EntryPrice.InexactFloat64()
	if !long {
		move = -move
	}
	return move >= 2*atr
}

// freerideExit implements the S5/S7 multiplier exit: a 1h MACD divergence
// against the position closes it outright; once profit reaches 1.5x the 1h
// ATR the position enters a free-ride (SL moved to the nearest fractal, or
// entry +/- 0.2*ATR as a fallback) and from then on a 15m SuperTrend flip
// closes it (spec.md §4.6).
func (m *Monitor) freerideExit(c *types.Contract, long bool, snap types.SymbolState) bool {
	h1 := types.FloatCandles(snap.Rings[types.Gran1h])
	if len(h1) >= 26 {
		closes := indicators.Closes(h1)
		macdSeries := indicators.MACDSeries(closes, 12, 26)
		div := indicators.MACDDivergence(closes, macdSeries, 10)
		if long && div < 0 {
			return true
		}
		if !long && div > 0 {
			return true
		}
	}

	if !c.IsFreeride {
		atr1h := indicators.ATR(h1, 14)
		if atr1h > 0 && c.HasEntryPrice {
			profitMove := c.PnL.InexactFloat64()
			if profitMove >= 1.5*atr1h {
				c.IsFreeride = true
				m.setFreerideStop(c, snap, atr1h, long)
			}
		}
		return false
	}

	m15 := types.FloatCandles(snap.Rings[types.Gran15m])
	if len(m15) < 10 {
		return false
	}
	_, direction := indicators.SuperTrend(m15, 10, 3)
	flipped := direction[len(direction)-1]
	if long && flipped < 0 {
		return true
	}
	if !long && flipped > 0 {
		return true
	}
	return false
}

func (m *Monitor) setFreerideStop(c *types.Contract, snap types.SymbolState, atr1h float64, long bool) {
	m5 := types.FloatCandles(snap.Rings[types.Gran5m])
	highs, lows := indicators.Fractal(m5, 3)
	if long {
		if price, ok := indicators.NearestFractalPrice(m5, lows, len(m5)-1, false); ok {
			c.SLPrice = decimal.NewFromFloat(price)
			c.HasSLPrice = true
			return
		}
		c.SLPrice = c.EntryPrice.Sub(decimal.NewFromFloat(0.2 * atr1h))
	} else {
		if price, ok := indicators.NearestFractalPrice(m5, highs, len(m5)-1, true); ok {
			c.SLPrice = decimal.NewFromFloat(price)
			c.HasSLPrice = true
			return
		}
		c.SLPrice = c.EntryPrice.Add(decimal.NewFromFloat(0.2 * atr1h))
	}
	c.HasSLPrice = true
}
