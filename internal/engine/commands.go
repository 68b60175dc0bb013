package engine

import "time"

// StartTrading handles the operator "start" command: resume trading without
// touching the socket (spec.md §6 Operator Commands).
func (e *Engine) StartTrading() {
	e.SetTrading(true)
}

// StopTrading handles the operator "stop" command: fall back to
// PassiveMonitoring, leaving the socket authorized and the screener running.
func (e *Engine) StopTrading() {
	e.SetTrading(false)
}

// ClearConsole emits a console_log marker the UI can use to clear its
// scrollback; the engine keeps no console history of its own to clear.
func (e *Engine) ClearConsole() {
	e.log("info", "__clear__")
}

// BatchCancelOrders closes every open contract across all symbols. EmergencySL
// is its documented alias (spec.md §6).
func (e *Engine) BatchCancelOrders() {
	now := time.Now()
	for _, c := range e.monitor.OpenContracts() {
		e.closeContract(c.ID, now)
	}
	e.emit(EventSuccess, "batch cancel submitted")
}

// EmergencySL is an alias of BatchCancelOrders (spec.md §6).
func (e *Engine) EmergencySL() {
	e.BatchCancelOrders()
}

// CloseTrade closes a single open contract by ID.
func (e *Engine) CloseTrade(contractID string) {
	if _, ok := e.monitor.ByID(contractID); !ok {
		e.emit(EventError, "no such open contract: "+contractID)
		return
	}
	e.closeContract(contractID, time.Now())
	e.emit(EventSuccess, "close requested for "+contractID)
}
