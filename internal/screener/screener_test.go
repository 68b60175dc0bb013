package screener

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingCandles(n int, start, step float64) []types.Candle {
	out := make([]types.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
		out[i] = types.Candle{
			Epoch: int64(i * 60),
			Open:  decimal.NewFromFloat(price - step),
			High:  decimal.NewFromFloat(price + 0.1),
			Low:   decimal.NewFromFloat(price - step - 0.1),
			Close: decimal.NewFromFloat(price),
		}
	}
	return out
}

func TestCompositeVoteInsufficientDataIsNeutral(t *testing.T) {
	tally, rec := CompositeVote(types.FloatCandles(trendingCandles(10, 100, 1)))
	assert.Equal(t, 0.0, tally)
	assert.Equal(t, Neutral, rec)
}

func TestCompositeVoteUptrendLeansBuy(t *testing.T) {
	tally, rec := CompositeVote(types.FloatCandles(trendingCandles(150, 100, 0.5)))
	assert.Greater(t, tally, 0.0)
	assert.Contains(t, []TASignal{Buy, StrongBuy}, rec)
}

func TestBandRecommendationThresholds(t *testing.T) {
	assert.Equal(t, StrongBuy, bandRecommendation(0.6))
	assert.Equal(t, Buy, bandRecommendation(0.2))
	assert.Equal(t, Neutral, bandRecommendation(0.05))
	assert.Equal(t, Sell, bandRecommendation(-0.2))
	assert.Equal(t, StrongSell, bandRecommendation(-0.6))
}

func TestGranularityFromLabelOffIsUnrecognized(t *testing.T) {
	_, ok := granularityFromLabel("OFF")
	assert.False(t, ok)
	g, ok := granularityFromLabel("15m")
	require.True(t, ok)
	assert.Equal(t, types.Gran15m, g)
}

func TestAlignStrategy7SmallOffFallsBackToMidHigh(t *testing.T) {
	cfg := types.Configuration{Strat7SmallTF: "OFF", Strat7MidTF: "15m", Strat7HighTF: "1h"}
	st := types.SymbolState{Rings: map[types.Granularity][]types.Candle{
		types.Gran15m: trendingCandles(150, 100, 0.5),
		types.Gran1h:  trendingCandles(150, 100, 0.5),
	}}
	card, _ := alignStrategy7(cfg, st, time.Now())
	assert.Equal(t, types.SignalBuy, card.Signal)
	assert.Equal(t, "ALIGNED_BUY", card.Regime)
}

func TestAlignStrategy7SmallConfiguredRequiresFreshAgreement(t *testing.T) {
	cfg := types.Configuration{Strat7SmallTF: "1m", Strat7MidTF: "15m", Strat7HighTF: "1h"}
	rising := trendingCandles(150, 100, 0.5)
	st := types.SymbolState{
		Rings: map[types.Granularity][]types.Candle{
			types.Gran1m:  rising,
			types.Gran15m: rising,
			types.Gran1h:  rising,
		},
		Strat7Cache: types.Strat7Cache{Small: "BUY"},
	}
	card, _ := alignStrategy7(cfg, st, time.Now())
	assert.Equal(t, types.SignalWait, card.Signal, "no fresh edge since small already recommended BUY")
}

func TestSuggestedMultiplierCappedDuringDeadHours(t *testing.T) {
	deadHour := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	mult := suggestedMultiplier(0.001, 50, deadHour)
	assert.LessOrEqual(t, mult, 10.0)
}

func TestScoreDispatchesByStrategy(t *testing.T) {
	rising := trendingCandles(150, 100, 0.5)
	st := types.SymbolState{Rings: map[types.Granularity][]types.Candle{
		types.Gran1m:  rising,
		types.Gran5m:  rising,
		types.Gran15m: rising,
		types.Gran1h:  rising,
		types.Gran4h:  rising,
	}}
	card := Score(types.Configuration{ActiveStrategy: types.Strategy3}, st, 0, time.Now())
	assert.False(t, math.IsNaN(card.Confidence))
	assert.NotEmpty(t, card.Regime)
}
