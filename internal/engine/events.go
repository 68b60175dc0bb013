package engine

import (
	"time"

	"github.com/quantedge/derivengine/pkg/types"
)

// PushEventType enumerates the Engine Coordinator's outbound push-socket
// event names (spec.md §4.8, §6 "Outbound push events").
type PushEventType string

const (
	EventBotStatus         PushEventType = "bot_status"
	EventAccountUpdate     PushEventType = "account_update"
	EventTradesUpdate      PushEventType = "trades_update"
	EventScreenerUpdate    PushEventType = "screener_update"
	EventMultipliersUpdate PushEventType = "multipliers_update"
	EventPositionUpdate    PushEventType = "position_update"
	EventConsoleLog        PushEventType = "console_log"
	EventSuccess           PushEventType = "success"
	EventError             PushEventType = "error"
)

// PushEvent is a single outbound event, fire-and-forget from any component
// into the injected emit function (spec.md §5 — "the emit function is
// responsible for its own thread-safety").
type PushEvent struct {
	Type PushEventType
	Data any
}

// EmitFunc is the engine's sole boundary to the HTTP/push-socket
// presentation layer, which spec.md §1 treats as an external collaborator.
type EmitFunc func(PushEvent)

// BotStatus is the payload of a bot_status event.
type BotStatus struct {
	Running bool             `json:"running"`
	State   types.EngineState `json:"state"`
}

// ScreenerUpdate is the payload of a screener_update event.
type ScreenerUpdate struct {
	Symbol string                  `json:"symbol"`
	Data   types.ScreenerScorecard `json:"data"`
}

// MultipliersUpdate is the payload of a multipliers_update event.
type MultipliersUpdate struct {
	Symbol      string    `json:"symbol"`
	Multipliers []float64 `json:"multipliers"`
}

// ConsoleLog is the payload of a console_log event.
type ConsoleLog struct {
	Timestamp int64  `json:"ts"`
	Message   string `json:"message"`
	Level     string `json:"level"`
}

func (e *Engine) emit(t PushEventType, data any) {
	e.mu.RLock()
	fn := e.emitFn
	e.mu.RUnlock()
	if fn == nil {
		return
	}
	fn(PushEvent{Type: t, Data: data})
}

func (e *Engine) log(level, message string) {
	e.emit(EventConsoleLog, ConsoleLog{Timestamp: time.Now().UnixMilli(), Message: message, Level: level})
}
