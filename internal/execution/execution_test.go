package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/internal/monitor"
	"github.com/quantedge/derivengine/internal/strategy"
	"github.com/quantedge/derivengine/pkg/types"

	"github.com/stretchr/testify/assert"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	logger := zap.NewNop()
	c := cache.New(logger)
	c.EnsureSymbol("R_100")
	b := broker.NewSession(logger, types.DefaultBrokerConfig())
	m := monitor.New(logger, c)
	return New(logger, b, c, m)
}

func TestComputeStakeFixedBalance(t *testing.T) {
	cfg := types.Configuration{UseFixedBalance: true, BalanceValue: 5}
	assert.Equal(t, 5.0, computeStake(cfg, types.SessionMetrics{}, false))
}

func TestComputeStakeClampedToFloor(t *testing.T) {
	cfg := types.Configuration{UseFixedBalance: true, BalanceValue: 0.1}
	assert.Equal(t, minStakeUSD, computeStake(cfg, types.SessionMetrics{}, false))
}

func TestComputeStakeMultiplierUsesFivePercent(t *testing.T) {
	cfg := types.Configuration{UseFixedBalance: false}
	stake := computeStake(cfg, types.SessionMetrics{AccountBalance: 1000}, true)
	assert.Equal(t, 50.0, stake)
}

func TestComputeStakePercentOfBalanceForBinary(t *testing.T) {
	cfg := types.Configuration{UseFixedBalance: false, BalanceValue: 2}
	stake := computeStake(cfg, types.SessionMetrics{AccountBalance: 1000}, false)
	assert.Equal(t, 20.0, stake)
}

func TestBuildOrderSpecFloorsDuration(t *testing.T) {
	e := newTestExecutor(t)
	spec := e.buildOrderSpec("R_100", strategy.Intent{Kind: strategy.IntentOpen, Side: types.SideLong, ExpirySeconds: 2}, types.Configuration{ContractType: types.ContractTypeRiseFall}, 1)
	assert.Equal(t, int64(durationFloorSeconds), spec.Duration)
	assert.Equal(t, types.DirectionCall, spec.Direction)
}

func TestBuildOrderSpecMultiplierSetsLimitsFromATR(t *testing.T) {
	e := newTestExecutor(t)
	candles := make([]types.Candle, 30)
	price := 100.0
	for i := range candles {
		price += 0.5
		candles[i] = types.Candle{
			Epoch: int64(i * 3600),
			Open:  decimal.NewFromFloat(price - 0.5),
			High:  decimal.NewFromFloat(price + 0.2),
			Low:   decimal.NewFromFloat(price - 0.7),
			Close: decimal.NewFromFloat(price),
		}
	}
	e.cache.ApplyCandleBatch("R_100", types.Gran1h, candles)

	cfg := types.Configuration{ContractType: types.ContractTypeMultiplier, MultiplierValue: 50}
	spec := e.buildOrderSpec("R_100", strategy.Intent{Kind: strategy.IntentOpen, Side: types.SideLong, ExpirySeconds: 300}, cfg, 10)
	assert.True(t, spec.HasLimits)
	assert.Greater(t, spec.TakeProfit, spec.StopLoss)
}

func TestExecuteDropsSilentlyWhenDisconnected(t *testing.T) {
	e := newTestExecutor(t)
	intent := strategy.Intent{Kind: strategy.IntentOpen, Side: types.SideLong, ExpirySeconds: 60}
	e.Execute("R_100", intent, types.Configuration{ContractType: types.ContractTypeRiseFall, UseFixedBalance: true, BalanceValue: 1}, types.SessionMetrics{}, time.Now())
	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 1, stats.FailedOrders)
	assert.Equal(t, 0, stats.SuccessfulOrders)
}

func TestExecuteIgnoresNonOpenIntents(t *testing.T) {
	e := newTestExecutor(t)
	e.Execute("R_100", strategy.Intent{Kind: strategy.IntentNone}, types.Configuration{}, types.SessionMetrics{}, time.Now())
	assert.Equal(t, 0, e.Stats().TotalOrders)
}
