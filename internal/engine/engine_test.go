package engine

import (
	"testing"
	"time"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/pkg/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) (*Engine, *[]PushEvent) {
	t.Helper()
	var events []PushEvent
	e := New(zap.NewNop(), types.DefaultBrokerConfig(), func(ev PushEvent) {
		events = append(events, ev)
	})
	return e, &events
}

func TestNewEngineStartsStopped(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, types.EngineStateStopped, e.State())
}

func TestSetTradingNoopWhenStopped(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTrading(true)
	assert.Equal(t, types.EngineStateStopped, e.State())
}

func TestSetTradingTogglesWhenPassive(t *testing.T) {
	e, _ := newTestEngine(t)
	e.mu.Lock()
	e.state = types.EngineStatePassiveMonitoring
	e.mu.Unlock()

	e.SetTrading(true)
	assert.Equal(t, types.EngineStateTrading, e.State())

	e.SetTrading(false)
	assert.Equal(t, types.EngineStatePassiveMonitoring, e.State())
}

func TestStopIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	e.mu.Lock()
	e.state = types.EngineStateTrading
	e.mu.Unlock()

	e.Stop()
	assert.Equal(t, types.EngineStateStopped, e.State())
	e.Stop()
	assert.Equal(t, types.EngineStateStopped, e.State())
}

func TestApplyConfigNoopWhenEqual(t *testing.T) {
	e, events := newTestEngine(t)
	cfg := types.Configuration{Symbols: []string{"R_100"}}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.ApplyConfig(cfg)
	assert.Empty(t, *events)
}

func TestApplyConfigSubscribesAddedSymbols(t *testing.T) {
	e, _ := newTestEngine(t)
	e.ApplyConfig(types.Configuration{Symbols: []string{"R_100", "R_50"}})

	symbols := e.cache.Symbols()
	assert.ElementsMatch(t, []string{"R_100", "R_50"}, symbols)
}

func TestApplyConfigDropsRemovedSymbols(t *testing.T) {
	e, _ := newTestEngine(t)
	e.ApplyConfig(types.Configuration{Symbols: []string{"R_100", "R_50"}})
	e.ApplyConfig(types.Configuration{Symbols: []string{"R_100"}})

	assert.ElementsMatch(t, []string{"R_100"}, e.cache.Symbols())
}

func TestApplyConfigStrategyChangeResetsSymbolState(t *testing.T) {
	e, _ := newTestEngine(t)
	e.ApplyConfig(types.Configuration{Symbols: []string{"R_100"}, ActiveStrategy: types.Strategy1})
	e.ApplyConfig(types.Configuration{Symbols: []string{"R_100"}, ActiveStrategy: types.Strategy2})

	snap, ok := e.cache.Snapshot("R_100")
	assert.True(t, ok)
	assert.False(t, snap.HasLastTradeLTF)
}

func TestOnBuyAckReconstructsContractFromEcho(t *testing.T) {
	e, _ := newTestEngine(t)
	e.onBuyAck(&broker.BuyAckEvent{
		ContractID: "C1",
		Stake:      10,
		Echo: map[string]any{
			"symbol":       "R_100",
			"direction":    "PUT",
			"contractType": string(types.ContractTypeRiseFall),
			"duration":     float64(60),
			"multiplier":   float64(0),
		},
	})

	c, ok := e.monitor.ByID("C1")
	assert.True(t, ok)
	assert.Equal(t, "R_100", c.Symbol)
	assert.Equal(t, types.SideShort, c.Side)
	assert.True(t, c.HasExpiryTime)
}

func TestOnBuyAckMultiplierHasNoExpiry(t *testing.T) {
	e, _ := newTestEngine(t)
	e.onBuyAck(&broker.BuyAckEvent{
		ContractID: "C2",
		Stake:      10,
		Echo: map[string]any{
			"symbol":       "R_100",
			"direction":    "CALL",
			"contractType": string(types.ContractTypeMultiplier),
			"duration":     float64(0),
			"multiplier":   float64(50),
		},
	})

	c, ok := e.monitor.ByID("C2")
	assert.True(t, ok)
	assert.False(t, c.HasExpiryTime)
	assert.Equal(t, 50.0, c.Multiplier.InexactFloat64())
}

func TestOnTickPublishesPositionUpdate(t *testing.T) {
	e, events := newTestEngine(t)
	e.cache.EnsureSymbol("R_100")
	e.cache.SetActiveGranularities(types.Gran1m, types.Gran1h)
	e.mu.Lock()
	e.cfg = types.Configuration{Symbols: []string{"R_100"}, ActiveStrategy: types.Strategy3, EntryType: types.EntryTypeTick}
	e.state = types.EngineStatePassiveMonitoring
	e.mu.Unlock()

	e.onTick(&broker.TickEvent{Symbol: "R_100", Epoch: time.Now().Unix(), Quote: 100})

	found := false
	for _, ev := range *events {
		if ev.Type == EventPositionUpdate {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBatchCancelOrdersDropsSilentlyWhenDisconnected(t *testing.T) {
	e, _ := newTestEngine(t)
	e.monitor.Open(types.Contract{ID: "C3", Symbol: "R_100", Side: types.SideLong})

	e.BatchCancelOrders()

	c, ok := e.monitor.ByID("C3")
	assert.True(t, ok)
	assert.Equal(t, types.ContractStatusOpened, c.Status)
}

func TestCloseTradeUnknownIDEmitsError(t *testing.T) {
	e, events := newTestEngine(t)
	e.CloseTrade("does-not-exist")

	assert.Len(t, *events, 1)
	assert.Equal(t, EventError, (*events)[0].Type)
}

func TestGetViolationsTrimsToLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < 5; i++ {
		e.recordViolation("R_100", "daily risk gate", -6)
	}
	assert.Len(t, e.GetViolations(2), 2)
	assert.Len(t, e.GetViolations(0), 5)
}
