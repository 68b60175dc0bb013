// Package execution translates a Strategy Evaluator Intent into broker
// orders: opposite-side close-then-open sequencing, stake sizing, and the
// CALL/PUT or MULTUP/MULTDOWN order spec (spec.md §4.7).
package execution

import (
	"sync"
	"time"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/internal/monitor"
	"github.com/quantedge/derivengine/internal/strategy"
	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
)

// Metrics tracks in-memory execution statistics, mirroring the teacher's
// ExecutorMetrics shape, read through Stats.
type Metrics struct {
	TotalOrders      int
	SuccessfulOrders int
	FailedOrders     int
	LastOrderTime    time.Time
}

// Executor sequences opposite-side closes, sizes stakes, and submits orders.
type Executor struct {
	logger  *zap.Logger
	broker  *broker.Session
	cache   *cache.Cache
	monitor *monitor.Monitor

	mu      sync.Mutex
	metrics Metrics
}

// New constructs an Executor.
func New(logger *zap.Logger, b *broker.Session, c *cache.Cache, m *monitor.Monitor) *Executor {
	return &Executor{
		logger:  logger.Named("execution"),
		broker:  b,
		cache:   c,
		monitor: m,
	}
}

// Execute carries out an Open intent: it sells any opposite-side open
// contract on the symbol first (same-side intents never reach here — the
// Evaluator already drops them), sizes the stake, builds the order spec, and
// places it. Socket-disconnected failures drop the intent silently; any
// ApiError the broker reports is logged with no local retry (spec.md §4.7).
func (e *Executor) Execute(symbol string, intent strategy.Intent, cfg types.Configuration, metrics types.SessionMetrics, now time.Time) {
	if intent.Kind != strategy.IntentOpen {
		return
	}

	for _, open := range e.monitor.OpenContracts() {
		if open.Symbol == symbol && open.Side != intent.Side && open.Status != types.ContractStatusClosing {
			if err := e.broker.SellContract(open.ID); err != nil {
				e.logger.Debug("opposite-side close dropped, not connected", zap.String("symbol", symbol))
				return
			}
			e.monitor.MarkClosing(open.ID, now)
		}
	}

	isMultiplier := cfg.ContractType == types.ContractTypeMultiplier
	stake := computeStake(cfg, metrics, isMultiplier)
	if intent.StakeMultiplier > 0 {
		stake *= intent.StakeMultiplier
	}

	spec := e.buildOrderSpec(symbol, intent, cfg, stake)

	e.mu.Lock()
	e.metrics.TotalOrders++
	e.metrics.LastOrderTime = now
	e.mu.Unlock()

	if err := e.broker.PlaceOrder(spec); err != nil {
		e.mu.Lock()
		e.metrics.FailedOrders++
		e.mu.Unlock()
		e.logger.Debug("order dropped, not connected", zap.String("symbol", symbol))
		return
	}

	e.mu.Lock()
	e.metrics.SuccessfulOrders++
	e.mu.Unlock()
}

// Stats returns a copy of the executor's in-memory counters.
func (e *Executor) Stats() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}
