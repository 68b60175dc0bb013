// Package engine is the single coordinator that owns the map of SymbolState
// and Contracts exclusively (spec.md §3, §5): it wires the broker session,
// market data cache, screener, strategy evaluator, position monitor, and
// executor together, drives the lifecycle state machine, and is the sole
// publisher of push-socket events into an injected emit function (spec.md
// §4.8).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/internal/execution"
	"github.com/quantedge/derivengine/internal/monitor"
	"github.com/quantedge/derivengine/internal/screener"
	"github.com/quantedge/derivengine/internal/strategy"
	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
)

const (
	screenerInterval       = 10 * time.Second
	screenerIntervalStrat7 = 30 * time.Second
	monitorSweepInterval   = 5 * time.Second
)

// Engine is the coordinator described above. All broker/executor pointer
// swaps (on a credential-change reconnect) and cfg/state/metrics mutations
// go through mu; everything else is owned by cache/monitor's own locks.
type Engine struct {
	logger *zap.Logger

	mu      sync.RWMutex
	cfg     types.Configuration
	state   types.EngineState
	metrics types.SessionMetrics
	broker  *broker.Session

	brokerCfg types.BrokerConfig
	cache     *cache.Cache
	screener  *screener.Scorer
	evaluator *strategy.Evaluator
	monitor   *monitor.Monitor
	executor  *execution.Executor

	emitFn EmitFunc

	violMu     sync.Mutex
	violations []RiskViolation

	metricsReg *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an Engine in the Stopped state. emit may be nil (tests,
// headless use) — the engine still runs, it just has no push-socket sink.
func New(logger *zap.Logger, brokerCfg types.BrokerConfig, emit EmitFunc) *Engine {
	logger = logger.Named("engine")
	c := cache.New(logger)
	m := monitor.New(logger, c)
	b := broker.NewSession(logger, brokerCfg)

	e := &Engine{
		logger:     logger,
		brokerCfg:  brokerCfg,
		broker:     b,
		cache:      c,
		screener:   screener.NewScorer(logger, c),
		evaluator:  strategy.NewEvaluator(c),
		monitor:    m,
		executor:   execution.New(logger, b, c, m),
		emitFn:     emit,
		state:      types.EngineStateStopped,
		metricsReg: newMetrics(),
	}
	b.OnEvent(e.handleBrokerEvent)
	return e
}

// SetEmitFunc binds the push-socket sink after construction, for callers
// whose transport layer needs a live *Engine reference before it can build
// its own emit function (the HTTP/push-socket server is constructed with
// this Engine as a dependency, so New's emit argument can't close over it
// yet).
func (e *Engine) SetEmitFunc(emit EmitFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitFn = emit
}

// State returns the current lifecycle state.
func (e *Engine) State() types.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Metrics returns a copy of the in-memory session metrics.
func (e *Engine) Metrics() types.SessionMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}

// Config returns the active configuration.
func (e *Engine) Config() types.Configuration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// PrometheusRegistry exposes the engine's metrics for the /metrics handler.
func (e *Engine) PrometheusRegistry() *Metrics {
	return e.metricsReg
}

func (e *Engine) currentBroker() *broker.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.broker
}

func (e *Engine) currentExecutor() *execution.Executor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executor
}

// Start moves the engine from Stopped to PassiveMonitoring: it subscribes
// the configured symbols, connects the broker session, and launches the
// screener and monitor background loops. Trading itself only begins once
// SetTrading(true) is called (spec.md §4.8: "PassiveMonitoring keeps the
// socket authorized and the screener running but refuses new entries").
func (e *Engine) Start(ctx context.Context, cfg types.Configuration) {
	now := time.Now().UTC()
	e.mu.Lock()
	e.cfg = cfg
	e.state = types.EngineStatePassiveMonitoring
	e.metrics.DailyStartDate = now
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.ctx = runCtx
	e.cancel = cancel

	e.cache.SetActiveGranularities(ltfGranularity(cfg), htfGranularity(cfg))
	e.screener.Start()

	for _, symbol := range cfg.Symbols {
		e.subscribeSymbol(symbol, cfg)
	}

	e.currentBroker().Connect(runCtx, cfg.APIToken, cfg.AppID)

	go e.screenerLoop(runCtx)
	go e.monitorSweepLoop(runCtx)

	e.emit(EventBotStatus, BotStatus{Running: false, State: types.EngineStatePassiveMonitoring})
}

// SetTrading moves the engine between PassiveMonitoring and Trading without
// tearing down the socket (spec.md §4.8). No-op when Stopped.
func (e *Engine) SetTrading(trading bool) {
	e.mu.Lock()
	if e.state == types.EngineStateStopped {
		e.mu.Unlock()
		return
	}
	if trading {
		e.state = types.EngineStateTrading
	} else {
		e.state = types.EngineStatePassiveMonitoring
	}
	state := e.state
	e.mu.Unlock()
	e.emit(EventBotStatus, BotStatus{Running: state == types.EngineStateTrading, State: state})
}

// Stop closes the socket, stops the screener, and flushes a final
// account_update before returning (spec.md §6 "Exit behavior").
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == types.EngineStateStopped {
		e.mu.Unlock()
		return
	}
	e.state = types.EngineStateStopped
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.currentBroker().Stop()
	e.screener.Stop()

	e.emit(EventAccountUpdate, e.Metrics())
	e.emit(EventBotStatus, BotStatus{Running: false, State: types.EngineStateStopped})
}

func (e *Engine) subscribeSymbol(symbol string, cfg types.Configuration) {
	e.cache.EnsureSymbol(symbol)
	b := e.currentBroker()
	b.SubscribeTicks(symbol)
	for _, g := range screenerGranularities(cfg) {
		b.FetchCandles(symbol, g, types.RingCap(g))
	}
}
