// Package strategy implements the seven pluggable entry/exit rules the
// Strategy Evaluator consults once per tick and once per LTF close
// (spec.md §4.5).
package strategy

import "github.com/quantedge/derivengine/pkg/types"

// IntentKind discriminates what the evaluator wants the Execution layer to
// do, if anything.
type IntentKind string

const (
	IntentNone  IntentKind = "none"
	IntentOpen  IntentKind = "open"
	IntentClose IntentKind = "close"
)

// Intent is the Strategy Evaluator's per-call verdict.
type Intent struct {
	Kind IntentKind
	Side types.Side

	ContractID string

	// ExpirySeconds carries the strategy's computed duration, consumed by
	// Execution when translating an Open intent into an order. Multiplier
	// carries the screener's suggested leverage; Execution sizes multiplier
	// orders from Configuration.MultiplierValue and does not read it.
	ExpirySeconds int64
	Multiplier    float64

	// StakeMultiplier scales the base stake Execution computes. Zero means
	// "unset": Execution treats <= 0 as 1.0. Strategy 4 sets 0.5 once an
	// SNR zone's lifetime touch count reaches 3 (spec.md §4.5).
	StakeMultiplier float64

	// RiskTripped reports that a daily loss/profit gate fired this call;
	// the Engine Coordinator reacts by dropping out of Trading state.
	RiskTripped bool
}

var noneIntent = Intent{Kind: IntentNone}
