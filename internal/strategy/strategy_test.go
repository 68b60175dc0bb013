package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T, ltf, htf types.Granularity) (*Evaluator, *cache.Cache) {
	t.Helper()
	c := cache.New(zap.NewNop())
	c.SetActiveGranularities(ltf, htf)
	c.EnsureSymbol("R_100")
	return NewEvaluator(c), c
}

func seedRing(c *cache.Cache, symbol string, g types.Granularity, candles []types.Candle) {
	c.ApplyCandleBatch(symbol, g, candles)
}

func risingCandles(n int, start, step float64, stepEpoch int64) []types.Candle {
	out := make([]types.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
		out[i] = types.Candle{Epoch: int64(i) * stepEpoch, Open: decimal.NewFromFloat(price - step), High: decimal.NewFromFloat(price + 0.1), Low: decimal.NewFromFloat(price - step - 0.1), Close: decimal.NewFromFloat(price)}
	}
	return out
}

func baseMetrics() types.SessionMetrics {
	return types.SessionMetrics{Equity: 1000, DailyStartBalance: 1000}
}

func TestEvaluateDedupDropsSecondCallSameBoundary(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran15m, types.Gran1d)
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{
		{Epoch: 0, Open: decimal.NewFromFloat(99), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(98), Close: decimal.NewFromFloat(100.5)},
	})
	now := time.Unix(1000, 0).UTC()
	cfg := types.Configuration{ActiveStrategy: types.Strategy1}

	c.MarkTraded("R_100", currentBoundary(now, types.Gran15m))
	intent := e.Evaluate("R_100", true, now, cfg, baseMetrics(), nil)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestEvaluateRiskTrippedOnDailyLoss(t *testing.T) {
	e, _ := newTestEvaluator(t, types.Gran15m, types.Gran1d)
	cfg := types.Configuration{ActiveStrategy: types.Strategy1, MaxDailyLossPct: 5, MaxDailyProfitPct: 10}
	metrics := types.SessionMetrics{Equity: 900, DailyStartBalance: 1000}
	intent := e.Evaluate("R_100", true, time.Now(), cfg, metrics, nil)
	assert.True(t, intent.RiskTripped)
}

func TestEvaluateSameSideOpenDropped(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran15m, types.Gran1d)
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{
		{Epoch: 0, Open: decimal.NewFromFloat(98), High: decimal.NewFromFloat(99), Low: decimal.NewFromFloat(97), Close: decimal.NewFromFloat(98.5)},
		{Epoch: 900, Open: decimal.NewFromFloat(99), High: decimal.NewFromFloat(106), Low: decimal.NewFromFloat(98), Close: decimal.NewFromFloat(105)},
	})
	c.ApplyCandleBatch("R_100", types.Gran1d, []types.Candle{{Epoch: 0, Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100)}})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	_ = snap

	cfg := types.Configuration{ActiveStrategy: types.Strategy1, MaxDailyLossPct: 5, MaxDailyProfitPct: 10}
	open := types.Contract{Symbol: "R_100", Side: types.SideLong}
	intent := e.Evaluate("R_100", true, time.Now(), cfg, baseMetrics(), []types.Contract{open})
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestStrategy1BreakoutAboveHTFOpen(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran15m, types.Gran1d)
	c.ApplyCandleBatch("R_100", types.Gran1d, []types.Candle{{Epoch: 0, Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100)}})
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{
		{Epoch: 0, Open: decimal.NewFromFloat(98), High: decimal.NewFromFloat(99), Low: decimal.NewFromFloat(97), Close: decimal.NewFromFloat(98.5)},
		{Epoch: 900, Open: decimal.NewFromFloat(99), High: decimal.NewFromFloat(106), Low: decimal.NewFromFloat(98.5), Close: decimal.NewFromFloat(105)},
	})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.strategy1(time.Unix(1800, 0).UTC(), types.Configuration{}, snap)
	assert.Equal(t, IntentOpen, intent.Kind)
	assert.Equal(t, types.SideLong, intent.Side)
}

func TestStrategy1AbortsAfterTooManyDailyCrosses(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran15m, types.Gran1d)
	c.ApplyCandleBatch("R_100", types.Gran1d, []types.Candle{{Epoch: 0, Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100)}})
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{
		{Epoch: 0, Open: decimal.NewFromFloat(98), High: decimal.NewFromFloat(99), Low: decimal.NewFromFloat(97), Close: decimal.NewFromFloat(98.5)},
		{Epoch: 900, Open: decimal.NewFromFloat(99), High: decimal.NewFromFloat(106), Low: decimal.NewFromFloat(98.5), Close: decimal.NewFromFloat(105)},
	})
	for i := 0; i < 5; i++ {
		c.RecordCross("R_100", types.SideLong, 0)
		c.RecordCross("R_100", types.SideShort, 0)
	}
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.strategy1(time.Unix(1800, 0).UTC(), types.Configuration{}, snap)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestStrategy2RequiresRSIConfirmation(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran3m, types.Gran1h)
	c.ApplyCandleBatch("R_100", types.Gran1h, []types.Candle{{Epoch: 0, Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100)}})
	// A flat/declining 3m series keeps RSI well under 55 even after a single
	// breakout candle, so the entry should be rejected.
	falling := risingCandles(30, 110, -0.2, 180)
	falling = append(falling, types.Candle{Epoch: int64(30 * 180), Open: decimal.NewFromFloat(99), High: decimal.NewFromFloat(106), Low: decimal.NewFromFloat(98), Close: decimal.NewFromFloat(105)})
	c.ApplyCandleBatch("R_100", types.Gran3m, falling)
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.strategy2(time.Now(), types.Configuration{}, snap)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestStrategy3RespectsHourlyCap(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran1m, types.Gran15m)
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{{Epoch: 0, Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101), Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100)}})
	candles := risingCandles(130, 95, 0.3, 60)
	c.ApplyCandleBatch("R_100", types.Gran1m, candles)
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	snap.LastTradeHour = now.UTC().Hour()
	snap.HourlyTradeCount = maxHourlyTrades
	intent := e.strategy3(now, snap)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestStrategy4RequiresZoneTouchAndPatternScore(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran1m, types.Gran5m)
	c.SetSNRZones("R_100", []types.SNRZone{{Price: 105, Type: types.ZoneResistance}})
	c.ApplyCandleBatch("R_100", types.Gran5m, risingCandles(60, 90, 0.2, 300))
	c.ApplyCandleBatch("R_100", types.Gran1m, []types.Candle{
		{Epoch: 0, Open: decimal.NewFromFloat(106), High: decimal.NewFromFloat(106.2), Low: decimal.NewFromFloat(104.9), Close: decimal.NewFromFloat(105.1)},
	})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.strategy4(true, "R_100", snap)
	assert.NotEqual(t, IntentOpen, intent.Kind, "a single small-bodied candle shouldn't score a reversal pattern on its own")
}

func TestScreenerDrivenRejectsStaleScorecard(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran5m, types.Gran1h)
	c.SetScorecard("R_100", types.ScreenerScorecard{
		Signal: types.SignalBuy, Confidence: 80, Threshold: 70,
		Direction: types.DirectionCall, LastUpdate: time.Now().Add(-time.Minute),
	})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.screenerDriven(time.Now(), types.Configuration{ActiveStrategy: types.Strategy5}, snap)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestScreenerDrivenOpensOnFreshValidSignal(t *testing.T) {
	e, c := newTestEvaluator(t, types.Gran5m, types.Gran1h)
	c.SetScorecard("R_100", types.ScreenerScorecard{
		Signal: types.SignalBuy, Confidence: 80, Threshold: 70,
		Direction: types.DirectionCall, ExpiryMin: 5, LastUpdate: time.Now(),
	})
	snap, ok := c.Snapshot("R_100")
	require.True(t, ok)
	intent := e.screenerDriven(time.Now(), types.Configuration{ActiveStrategy: types.Strategy5}, snap)
	assert.Equal(t, IntentOpen, intent.Kind)
	assert.Equal(t, types.SideLong, intent.Side)
}
