// Package monitor implements the Position Monitor: the Opened -> Active ->
// Closing -> Sold state machine that owns TP/SL, force-close, and the
// strategy-coupled exit rules independently of the Strategy Evaluator
// (spec.md §4.6).
package monitor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/pkg/types"
)

// closeRetryInterval is how long Closing waits before resending a sell
// request (spec.md §4.6: "resend sell if now-last_close_attempt>30s").
const closeRetryInterval = 30 * time.Second

// ghostGrace is how long past expiry a contract is kept before being
// dropped locally without a sell (spec.md §4.6 ghost cleanup).
const ghostGrace = 60 * time.Second

// Monitor tracks open contracts under single-writer discipline, mirroring
// the teacher's OrderManager: a mutex-guarded map, copy-on-read accessors.
type Monitor struct {
	logger *zap.Logger
	cache  *cache.Cache

	mu        sync.Mutex
	contracts map[string]*types.Contract
}

// New constructs an empty Monitor.
func New(logger *zap.Logger, c *cache.Cache) *Monitor {
	return &Monitor{
		logger:    logger.Named("monitor"),
		cache:     c,
		contracts: make(map[string]*types.Contract),
	}
}

// Open registers a freshly bought contract in the Opened state.
func (m *Monitor) Open(contract types.Contract) {
	contract.Status = types.ContractStatusOpened
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := contract
	m.contracts[contract.ID] = &cp
}

// HandleContractUpdate applies a broker ContractUpdate event: the first
// update carrying entry_tick moves Opened -> Active and derives TP/SL once;
// a terminal is_sold update moves to Sold, records the win/loss outcome, and
// removes the contract from tracking. Returns the terminal contract and true
// when the position has just closed.
func (m *Monitor) HandleContractUpdate(ev broker.ContractUpdateEvent, cfg types.Configuration) (types.Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[ev.ContractID]
	if !ok {
		return types.Contract{}, false
	}

	c.PnL = decimal.NewFromFloat(ev.Profit)

	if !c.HasEntryPrice && ev.HasEntryTick {
		c.EntryPrice = decimal.NewFromFloat(ev.EntryTick)
		c.HasEntryPrice = true
		c.Status = types.ContractStatusActive
		m.deriveTPSL(c, cfg)
	}

	if ev.IsSold {
		won := ev.Profit > 0
		m.cache.RecordOutcome(c.Symbol, won)
		c.Status = types.ContractStatusSold
		cp := *c
		delete(m.contracts, ev.ContractID)
		return cp, true
	}

	return *c, false
}

// MarkClosing transitions a contract to Closing and stamps the close
// attempt time, called by Execution right after it sends (or resends) a
// sell request.
func (m *Monitor) MarkClosing(contractID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contracts[contractID]; ok {
		c.Status = types.ContractStatusClosing
		c.IsClosing = true
		c.LastCloseAttempt = now
	}
}

// CheckRetries returns the IDs of Closing contracts whose last close
// attempt is older than the retry cooldown (spec.md §4.6 idempotent resend).
func (m *Monitor) CheckRetries(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []string
	for id, c := range m.contracts {
		if c.Status == types.ContractStatusClosing && now.Sub(c.LastCloseAttempt) > closeRetryInterval {
			due = append(due, id)
		}
	}
	return due
}

// GhostCleanup drops, without selling, any contract whose expiry passed more
// than ghostGrace ago — the broker considered it settled and stopped
// sending updates, so local bookkeeping must not wait forever.
func (m *Monitor) GhostCleanup(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped []string
	for id, c := range m.contracts {
		if c.HasExpiryTime && now.After(c.ExpiryTime.Add(ghostGrace)) {
			dropped = append(dropped, id)
			delete(m.contracts, id)
		}
	}
	return dropped
}

// OpenContracts returns a copy of all tracked contracts.
func (m *Monitor) OpenContracts() []types.Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		out = append(out, *c)
	}
	return out
}

// ByID returns a copy of a tracked contract.
func (m *Monitor) ByID(contractID string) (types.Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[contractID]
	if !ok {
		return types.Contract{}, false
	}
	return *c, true
}

// Remove drops a contract from tracking without any side effects — used
// once Execution confirms a sell and the Engine has already reacted to the
// terminal ContractUpdate.
func (m *Monitor) Remove(contractID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contracts, contractID)
}
