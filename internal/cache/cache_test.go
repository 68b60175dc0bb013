package cache

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/pkg/types"
)

func newTestCache() *Cache {
	c := New(zap.NewNop())
	c.EnsureSymbol("R_100")
	c.SetActiveGranularities(types.Gran1m, types.Gran15m)
	return c
}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestApplyCandleBatchReplacesRingAndCaps(t *testing.T) {
	c := newTestCache()
	candles := make([]types.Candle, 0, 130)
	for i := 0; i < 130; i++ {
		candles = append(candles, types.Candle{Epoch: int64(i * 60), Open: d(1), High: d(1), Low: d(1), Close: d(1)})
	}
	c.ApplyCandleBatch("R_100", types.Gran1m, candles)
	ring := c.RingFor("R_100", types.Gran1m)
	assert.Len(t, ring, types.RingCap(types.Gran1m))
	assert.Equal(t, candles[len(candles)-1].Epoch, ring[len(ring)-1].Epoch)
}

func TestAppendClosedCandleDropsOlder(t *testing.T) {
	c := newTestCache()
	c.ApplyCandleBatch("R_100", types.Gran1m, []types.Candle{{Epoch: 120, Open: d(1), High: d(1), Low: d(1), Close: d(1)}})
	ok := c.AppendClosedCandle("R_100", types.Gran1m, types.Candle{Epoch: 60, Open: d(2), High: d(2), Low: d(2), Close: d(2)})
	assert.False(t, ok, "older epoch must not be appended")
	ring := c.RingFor("R_100", types.Gran1m)
	require.Len(t, ring, 1)
	assert.Equal(t, int64(120), ring[0].Epoch)
}

func TestAppendClosedCandleReplacesTailOnSameEpoch(t *testing.T) {
	c := newTestCache()
	c.ApplyCandleBatch("R_100", types.Gran1m, []types.Candle{{Epoch: 60, Open: d(1), High: d(1), Low: d(1), Close: d(1)}})
	ok := c.AppendClosedCandle("R_100", types.Gran1m, types.Candle{Epoch: 60, Open: d(1), High: d(2), Low: d(1), Close: d(1.5)})
	assert.True(t, ok)
	ring := c.RingFor("R_100", types.Gran1m)
	require.Len(t, ring, 1)
	assert.True(t, ring[0].High.Equal(d(2)))
}

func TestApplyTickAssemblesLTFAndClosesOnBoundaryCross(t *testing.T) {
	c := newTestCache()
	c.ApplyTick("R_100", 0, 100, "sub1")
	res := c.ApplyTick("R_100", 30, 105, "sub1")
	assert.False(t, res.LTFClosed)

	res = c.ApplyTick("R_100", 61, 110, "sub1")
	assert.True(t, res.LTFClosed)
	assert.True(t, res.ClosedLTF.Open.Equal(d(100)))
	assert.True(t, res.ClosedLTF.High.Equal(d(105)))
	assert.True(t, res.ClosedLTF.Close.Equal(d(105)))

	ring := c.RingFor("R_100", types.Gran1m)
	require.Len(t, ring, 1)
	assert.Equal(t, int64(0), ring[0].Epoch)
}

func TestApplyTickDetectsDayRollover(t *testing.T) {
	c := newTestCache()
	c.ApplyTick("R_100", 86399, 100, "")
	res := c.ApplyTick("R_100", 86401, 101, "")
	assert.True(t, res.DayRolled)
}

func TestDedupKeyAcrossReconnect(t *testing.T) {
	c := newTestCache()
	assert.False(t, c.DedupKey("R_100", 60))
	c.MarkTraded("R_100", 60)
	assert.True(t, c.DedupKey("R_100", 60))
	assert.False(t, c.DedupKey("R_100", 120))
}

func TestSetSNRZonesDropsRetired(t *testing.T) {
	c := newTestCache()
	c.SetSNRZones("R_100", []types.SNRZone{
		{Price: 1, Type: types.ZoneSupport, LifetimeTouches: 1},
		{Price: 2, Type: types.ZoneResistance, LifetimeTouches: 6},
	})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	require.Len(t, snap.SNRZones, 1)
	assert.Equal(t, 1.0, snap.SNRZones[0].Price)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := newTestCache()
	c.ApplyCandleBatch("R_100", types.Gran1m, []types.Candle{{Epoch: 60, Open: d(1), High: d(1), Low: d(1), Close: d(1)}})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	snap.Rings[types.Gran1m][0].Close = d(999)
	ring := c.RingFor("R_100", types.Gran1m)
	assert.True(t, ring[0].Close.Equal(d(1)), "mutating a snapshot must not affect the live cache")
}
