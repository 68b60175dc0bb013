package engine

import (
	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/execution"
	"github.com/quantedge/derivengine/pkg/types"
)

// ApplyConfig reconciles the running engine onto next, reacting only to
// what changed (spec.md §4.8): added symbols subscribe and fetch history,
// removed symbols forget their subscription and drop cached state, a
// strategy change resets every symbol and re-fetches under the new
// granularities, and a credential change tears down and reconnects the
// broker session. A no-op diff still applies the new config values (e.g. a
// risk-limit edit) without touching the socket.
func (e *Engine) ApplyConfig(next types.Configuration) {
	prev := e.Config()
	if prev.Equal(next) {
		return
	}
	diff := types.DiffConfig(prev, next)

	e.mu.Lock()
	e.cfg = next
	e.mu.Unlock()

	for _, symbol := range diff.SymbolsRemoved {
		e.unsubscribeSymbol(symbol)
	}

	if diff.StrategyChanged {
		e.cache.SetActiveGranularities(ltfGranularity(next), htfGranularity(next))
		for _, symbol := range e.cache.Symbols() {
			e.cache.ResetSymbol(symbol)
			e.fetchHistories(symbol, next)
		}
	}

	for _, symbol := range diff.SymbolsAdded {
		e.subscribeSymbol(symbol, next)
	}

	if diff.CredentialsChanged {
		e.reconnect(next)
	}

	e.emit(EventSuccess, "configuration applied")
}

func (e *Engine) unsubscribeSymbol(symbol string) {
	if snap, ok := e.cache.Snapshot(symbol); ok && snap.SubscriptionID != "" {
		e.currentBroker().Forget(snap.SubscriptionID)
	}
	e.cache.DropSymbol(symbol)
}

func (e *Engine) fetchHistories(symbol string, cfg types.Configuration) {
	b := e.currentBroker()
	for _, g := range screenerGranularities(cfg) {
		b.FetchCandles(symbol, g, types.RingCap(g))
	}
}

// reconnect replaces the broker session under new credentials. Session.Stop
// is terminal — it closes a channel that can't be reopened — so a
// credential change gets a fresh Session rather than resuming the old one
// (spec.md §4.8: "credential change: close socket, reconnect loop
// re-authorizes").
func (e *Engine) reconnect(cfg types.Configuration) {
	e.currentBroker().Stop()
	e.metricsReg.Reconnects.Inc()

	b := broker.NewSession(e.logger, e.brokerCfg)
	b.OnEvent(e.handleBrokerEvent)

	e.mu.Lock()
	e.broker = b
	e.executor = execution.New(e.logger, b, e.cache, e.monitor)
	e.mu.Unlock()

	if e.ctx != nil {
		b.Connect(e.ctx, cfg.APIToken, cfg.AppID)
	}
	for _, symbol := range e.cache.Symbols() {
		b.SubscribeTicks(symbol)
	}
}
