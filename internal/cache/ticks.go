package cache

import (
	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/pkg/types"
)

// TickResult reports what a single ApplyTick call triggered, so the engine
// worker knows which downstream notifications to fan out (spec.md §4.3's
// five-step tick pipeline: day rollover, last_tick update, HTF assembly,
// LTF assembly + candle-close notice, Position Monitor notice).
type TickResult struct {
	DayRolled bool

	LTFClosed bool
	ClosedLTF types.Candle

	HTFClosed bool
	ClosedHTF types.Candle
}

// ApplyTick feeds one tick into a symbol's in-progress HTF/LTF candles and
// reports UTC day rollover. The Position Monitor notification itself is the
// caller's responsibility — every tick reaches it, regardless of the flags
// returned here.
func (c *Cache) ApplyTick(symbol string, epoch int64, quote float64, subscriptionID string) TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.symbols[symbol]
	if !ok {
		st = newSymbolState(symbol)
		c.symbols[symbol] = st
	}

	var res TickResult

	day := epoch / 86400
	if c.lastDayUTC >= 0 && day > c.lastDayUTC {
		res.DayRolled = true
	}
	c.lastDayUTC = day

	st.LastTick = quote
	st.HasLastTick = true
	if subscriptionID != "" {
		st.SubscriptionID = subscriptionID
	}

	if c.htfGranularity != 0 {
		if closed, candle := feedInProgress(st, c.htfGranularity, epoch, quote); closed {
			res.HTFClosed = true
			res.ClosedHTF = candle
			c.setHTFOpenLocked(st, candle)
			appendRingLocked(st, c.htfGranularity, candle)
		}
	}

	if c.ltfGranularity != 0 {
		if closed, candle := feedInProgress(st, c.ltfGranularity, epoch, quote); closed {
			res.LTFClosed = true
			res.ClosedLTF = candle
			appendRingLocked(st, c.ltfGranularity, candle)
		}
	}

	return res
}

// feedInProgress updates (or starts) the in-progress candle for granularity
// g. When the tick's epoch belongs to a new bucket, the prior in-progress
// candle is returned closed so the caller can ring-append and notify.
func feedInProgress(st *types.SymbolState, g types.Granularity, epoch int64, quote float64) (closed bool, candle types.Candle) {
	bucket := (epoch / int64(g)) * int64(g)
	q := decimal.NewFromFloat(quote)

	cur, have := st.InProgress[g]
	if !have {
		st.InProgress[g] = types.InProgressCandle{
			Candle:      types.Candle{Epoch: bucket, Open: q, High: q, Low: q, Close: q},
			BucketStart: bucket,
		}
		return false, types.Candle{}
	}

	if bucket == cur.BucketStart {
		if q.GreaterThan(cur.High) {
			cur.High = q
		}
		if q.LessThan(cur.Low) {
			cur.Low = q
		}
		cur.Close = q
		st.InProgress[g] = cur
		return false, types.Candle{}
	}

	closedCandle := cur.Candle
	st.InProgress[g] = types.InProgressCandle{
		Candle:      types.Candle{Epoch: bucket, Open: q, High: q, Low: q, Close: q},
		BucketStart: bucket,
	}
	return true, closedCandle
}

// appendRingLocked merges a closed candle into the ring, bypassing the
// public mutex (caller already holds it).
func appendRingLocked(st *types.SymbolState, g types.Granularity, candle types.Candle) {
	ring := st.Rings[g]
	if len(ring) > 0 && candle.Epoch <= ring[len(ring)-1].Epoch {
		return
	}
	ring = append(ring, candle)
	if ringCap := types.RingCap(g); len(ring) > ringCap {
		ring = ring[len(ring)-ringCap:]
	}
	st.Rings[g] = ring
}
