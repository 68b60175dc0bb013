package monitor

import (
	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/pkg/types"
)

// deriveTPSL computes TPPrice/SLPrice once, at the Opened -> Active
// transition (spec.md §4.6). Binary contracts get the configurable
// fail-safe percentage around entry (the profit field, not this price, is
// the primary TP/SL trigger — see shouldCloseLocked); multiplier contracts get an
// exact price solved from the profit formula so a plain price comparison is
// enough to trigger a close.
func (m *Monitor) deriveTPSL(c *types.Contract, cfg types.Configuration) {
	long := c.Side == types.SideLong

	if c.ContractType == types.ContractTypeMultiplier {
		tpUSD, slUSD := thresholdsUSD(cfg, c.Stake)
		if cfg.TPEnabled && c.Multiplier.IsPositive() && c.Stake.IsPositive() {
			c.TPPrice = multiplierTargetPrice(c.EntryPrice, c.Multiplier, c.Stake, tpUSD, long)
			c.HasTPPrice = true
		}
		if cfg.SLEnabled && c.Multiplier.IsPositive() && c.Stake.IsPositive() {
			c.SLPrice = multiplierTargetPrice(c.EntryPrice, c.Multiplier, c.Stake, slUSD.Neg(), long)
			c.HasSLPrice = true
		}
		return
	}

	pct := cfg.BinaryFailsafePct
	if pct <= 0 {
		pct = 1.0
	}
	band := decimal.NewFromFloat(pct / 100)
	one := decimal.NewFromInt(1)
	if long {
		c.TPPrice = c.EntryPrice.Mul(one.Add(band))
		c.SLPrice = c.EntryPrice.Mul(one.Sub(band))
	} else {
		c.TPPrice = c.EntryPrice.Mul(one.Sub(band))
		c.SLPrice = c.EntryPrice.Mul(one.Add(band))
	}
	c.HasTPPrice = true
	c.HasSLPrice = true
}

// thresholdsUSD converts configured TP/SL values into absolute USD targets:
// an absolute figure under a fixed balance, or a percentage of stake
// otherwise (spec.md §4.7's stake-sizing split applied to exit thresholds).
func thresholdsUSD(cfg types.Configuration, stake decimal.Decimal) (tp, sl decimal.Decimal) {
	if cfg.UseFixedBalance {
		return decimal.NewFromFloat(cfg.TPValue), decimal.NewFromFloat(cfg.SLValue)
	}
	hundred := decimal.NewFromInt(100)
	tp = stake.Mul(decimal.NewFromFloat(cfg.TPValue)).Div(hundred)
	sl = stake.Mul(decimal.NewFromFloat(cfg.SLValue)).Div(hundred)
	return tp, sl
}

// multiplierTargetPrice solves profitUSD = (price-entry)/entry*multiplier*stake
// (long) or (entry-price)/entry*multiplier*stake (short) for price.
func multiplierTargetPrice(entry, multiplier, stake, profitUSD decimal.Decimal, long bool) decimal.Decimal {
	if entry.IsZero() || multiplier.IsZero() || stake.IsZero() {
		return entry
	}
	delta := profitUSD.Mul(entry).Div(multiplier.Mul(stake))
	if long {
		return entry.Add(delta)
	}
	return entry.Sub(delta)
}
