package monitor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (*Monitor, *cache.Cache) {
	t.Helper()
	c := cache.New(zap.NewNop())
	c.EnsureSymbol("R_100")
	return New(zap.NewNop(), c), c
}

func TestOpenedToActiveDerivesBinaryFailsafe(t *testing.T) {
	mon, _ := newTestMonitor(t)
	mon.Open(types.Contract{ID: "c1", Symbol: "R_100", Side: types.SideLong, ContractType: types.ContractTypeRiseFall, Stake: decimal.NewFromInt(10)})

	cfg := types.Configuration{BinaryFailsafePct: 1}
	c, closed := mon.HandleContractUpdate(broker.ContractUpdateEvent{ContractID: "c1", EntryTick: 100, HasEntryTick: true, Profit: 0}, cfg)
	require.False(t, closed)
	assert.Equal(t, types.ContractStatusActive, c.Status)
	assert.InDelta(t, 101, c.TPPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 99, c.SLPrice.InexactFloat64(), 1e-9)
}

func TestTerminalUpdateRecordsOutcomeAndRemoves(t *testing.T) {
	mon, _ := newTestMonitor(t)
	mon.Open(types.Contract{ID: "c1", Symbol: "R_100", Side: types.SideLong, ContractType: types.ContractTypeRiseFall, Stake: decimal.NewFromInt(10)})
	mon.HandleContractUpdate(broker.ContractUpdateEvent{ContractID: "c1", EntryTick: 100, HasEntryTick: true}, types.Configuration{})

	c, closed := mon.HandleContractUpdate(broker.ContractUpdateEvent{ContractID: "c1", Profit: 5, IsSold: true}, types.Configuration{})
	assert.True(t, closed)
	assert.Equal(t, types.ContractStatusSold, c.Status)
	_, stillTracked := mon.ByID("c1")
	assert.False(t, stillTracked)
}

func TestEvaluateClosesOnConfiguredTakeProfit(t *testing.T) {
	mon, c := newTestMonitor(t)
	c.ApplyCandleBatch("R_100", types.Gran15m, []types.Candle{{Epoch: 0, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100)}})
	mon.Open(types.Contract{ID: "c1", Symbol: "R_100", Side: types.SideLong, ContractType: types.ContractTypeMultiplier, Stake: decimal.NewFromInt(10), Multiplier: decimal.NewFromInt(10)})
	mon.HandleContractUpdate(broker.ContractUpdateEvent{ContractID: "c1", EntryTick: 100, HasEntryTick: true, Profit: 6}, types.Configuration{TPEnabled: true, TPValue: 5, UseFixedBalance: true})

	toClose := mon.Evaluate("R_100", 101, types.Configuration{TPEnabled: true, TPValue: 5, UseFixedBalance: true}, time.Now())
	assert.Contains(t, toClose, "c1")
}

func TestGhostCleanupDropsExpiredContract(t *testing.T) {
	mon, _ := newTestMonitor(t)
	mon.Open(types.Contract{ID: "c1", Symbol: "R_100", ExpiryTime: time.Now().Add(-2 * time.Minute), HasExpiryTime: true})

	dropped := mon.GhostCleanup(time.Now())
	assert.Equal(t, []string{"c1"}, dropped)
	_, ok := mon.ByID("c1")
	assert.False(t, ok)
}

func TestCheckRetriesReturnsStaleClosingContracts(t *testing.T) {
	mon, _ := newTestMonitor(t)
	mon.Open(types.Contract{ID: "c1", Symbol: "R_100"})
	mon.MarkClosing("c1", time.Now().Add(-time.Minute))

	due := mon.CheckRetries(time.Now())
	assert.Contains(t, due, "c1")
}
