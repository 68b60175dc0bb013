package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/strategy"
	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
)

// handleBrokerEvent is registered as the broker session's sole event
// handler (engine.New). It runs on the session's read goroutine, so every
// tick and contract update for a given symbol is handled in the order the
// broker delivered it (spec.md §5).
func (e *Engine) handleBrokerEvent(ev broker.Event) {
	switch ev.Type {
	case broker.EventAuthorized:
		e.onAuthorized(ev.Authorized)
	case broker.EventBalance:
		e.onBalance(ev.Balance)
	case broker.EventCandles:
		e.onCandles(ev.Candles)
	case broker.EventTick:
		e.onTick(ev.Tick)
	case broker.EventContractUpdate:
		e.onContractUpdate(ev.ContractUpdate)
	case broker.EventContractsFor:
		e.onContractsFor(ev.ContractsFor)
	case broker.EventBuyAck:
		e.onBuyAck(ev.BuyAck)
	case broker.EventSellAck:
		// no-op: the terminal state transition arrives via EventContractUpdate's
		// is_sold flag, not the sell acknowledgement itself.
	case broker.EventAPIError:
		e.onAPIError(ev.APIError)
	}
}

func (e *Engine) onAuthorized(ev *broker.AuthorizedEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	e.metrics.AccountBalance = ev.Balance
	e.metrics.Equity = ev.Balance + e.metrics.FloatingPnL
	if e.metrics.DailyStartBalance == 0 {
		e.metrics.DailyStartBalance = ev.Balance
	}
	e.mu.Unlock()
	e.emit(EventAccountUpdate, e.Metrics())
}

func (e *Engine) onBalance(ev *broker.BalanceEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	e.metrics.AccountBalance = ev.Balance
	e.metrics.Equity = ev.Balance + e.metrics.FloatingPnL
	e.mu.Unlock()
	e.emit(EventAccountUpdate, e.Metrics())
}

func (e *Engine) onCandles(ev *broker.CandlesEvent) {
	if ev == nil {
		return
	}
	e.cache.ApplyCandleBatch(ev.Symbol, ev.Granularity, ev.Candles)
}

func (e *Engine) onContractsFor(ev *broker.ContractsForEvent) {
	if ev == nil {
		return
	}
	e.emit(EventMultipliersUpdate, MultipliersUpdate{Symbol: ev.Symbol, Multipliers: ev.Multipliers})
}

// onTick implements the five-step tick pipeline of spec.md §4.3: detect a
// UTC day rollover, update the cache, sweep the Position Monitor for exits,
// notify the Strategy Evaluator on LTF close (or every tick in tick-entry
// mode), and publish a position_update.
func (e *Engine) onTick(ev *broker.TickEvent) {
	if ev == nil {
		return
	}
	now := time.Now()
	result := e.cache.ApplyTick(ev.Symbol, ev.Epoch, ev.Quote, ev.SubscriptionID)

	if result.DayRolled {
		e.handleDayRollover(now)
	}

	cfg := e.Config()
	for _, contractID := range e.monitor.Evaluate(ev.Symbol, ev.Quote, cfg, now) {
		e.closeContract(contractID, now)
	}

	switch {
	case result.LTFClosed:
		e.evaluateSymbol(ev.Symbol, true, now, cfg)
	case cfg.EntryType == types.EntryTypeTick:
		e.evaluateSymbol(ev.Symbol, false, now, cfg)
	}

	e.publishPositionUpdate()
}

func (e *Engine) handleDayRollover(now time.Time) {
	e.mu.Lock()
	e.metrics.DailyStartBalance = e.metrics.AccountBalance
	e.metrics.DailyStartDate = now.UTC()
	e.metrics.Wins = 0
	e.metrics.Losses = 0
	e.metrics.RealizedPnL = 0
	e.mu.Unlock()

	cfg := e.Config()
	for _, symbol := range e.cache.Symbols() {
		e.cache.ResetDailyCrosses(symbol)
	}
	if htfGranularity(cfg) == types.Gran1d {
		b := e.currentBroker()
		for _, symbol := range e.cache.Symbols() {
			b.FetchCandles(symbol, types.Gran1d, types.RingCap(types.Gran1d))
		}
	}
	e.log("info", "daily rollover, resetting counters")
}

func (e *Engine) evaluateSymbol(symbol string, isCandleClose bool, now time.Time, cfg types.Configuration) {
	if e.State() != types.EngineStateTrading {
		return
	}

	open := e.monitor.OpenContracts()
	metrics := e.Metrics()
	intent := e.evaluator.Evaluate(symbol, isCandleClose, now, cfg, metrics, open)

	if intent.RiskTripped {
		e.recordViolation(symbol, "daily risk gate", metrics.DailyPnLPct())
		e.SetTrading(false)
		e.emit(EventError, "daily risk gate tripped, reverting to passive monitoring")
		return
	}

	if intent.Kind != strategy.IntentOpen {
		return
	}

	e.metricsReg.IntentsOpened.Inc()
	e.currentExecutor().Execute(symbol, intent, cfg, metrics, now)
}

func (e *Engine) closeContract(contractID string, now time.Time) {
	if err := e.currentBroker().SellContract(contractID); err != nil {
		e.logger.Debug("close dropped, not connected", zap.String("contractId", contractID))
		return
	}
	e.monitor.MarkClosing(contractID, now)
}

func (e *Engine) onContractUpdate(ev *broker.ContractUpdateEvent) {
	if ev == nil {
		return
	}
	cfg := e.Config()
	contract, terminal := e.monitor.HandleContractUpdate(*ev, cfg)
	if terminal {
		e.mu.Lock()
		if contract.PnL.IsPositive() {
			e.metrics.Wins++
		} else {
			e.metrics.Losses++
		}
		e.metrics.RealizedPnL += contract.PnL.InexactFloat64()
		e.mu.Unlock()
		e.emit(EventTradesUpdate, []types.Contract{contract})
	}
	e.publishPositionUpdate()
}

func (e *Engine) publishPositionUpdate() {
	open := e.monitor.OpenContracts()
	var floating float64
	for _, c := range open {
		floating += c.PnL.InexactFloat64()
	}
	e.mu.Lock()
	e.metrics.FloatingPnL = floating
	e.metrics.Equity = e.metrics.AccountBalance + floating
	e.mu.Unlock()
	e.metricsReg.OpenContracts.Set(float64(len(open)))
	e.metricsReg.DailyPnLPct.Set(e.Metrics().DailyPnLPct())
	e.emit(EventPositionUpdate, open)
}

// onBuyAck reconstructs the full Contract from the buy acknowledgement and
// the passthrough correlation data PlaceOrder attached to the request — the
// broker's proposal_open_contract stream never repeats the symbol or side,
// so this is the only point the Position Monitor learns them (spec.md §4.7).
func (e *Engine) onBuyAck(ev *broker.BuyAckEvent) {
	if ev == nil {
		return
	}
	symbol := echoString(ev.Echo, "symbol")
	direction := types.Direction(echoString(ev.Echo, "direction"))
	contractType := types.ContractType(echoString(ev.Echo, "contractType"))
	duration := int64(echoFloat(ev.Echo, "duration"))
	multiplier := echoFloat(ev.Echo, "multiplier")

	side := types.SideLong
	if direction == types.DirectionPut {
		side = types.SideShort
	}

	now := time.Now()
	contract := types.Contract{
		ID:              ev.ContractID,
		Symbol:          symbol,
		Side:            side,
		ContractType:    contractType,
		Stake:           decimal.NewFromFloat(ev.Stake),
		Multiplier:      decimal.NewFromFloat(multiplier),
		PurchaseTime:    now,
		HasPurchaseTime: true,
	}
	if contractType != types.ContractTypeMultiplier && duration > 0 {
		contract.ExpiryTime = now.Add(time.Duration(duration) * time.Second)
		contract.HasExpiryTime = true
	}

	e.monitor.Open(contract)
	e.emit(EventSuccess, "contract opened: "+contract.ID)
	e.publishPositionUpdate()
}

func (e *Engine) onAPIError(ev *broker.APIErrorEvent) {
	if ev == nil {
		return
	}
	e.metricsReg.OrdersFailed.Inc()
	e.emit(EventError, ev.Message)
	if ev.Code == broker.ErrAuthorizationRequired {
		e.log("warn", "authorization required, waiting for valid credentials")
	}
}

func echoString(echo map[string]any, key string) string {
	s, _ := echo[key].(string)
	return s
}

func echoFloat(echo map[string]any, key string) float64 {
	f, _ := echo[key].(float64)
	return f
}

