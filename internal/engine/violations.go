package engine

import "time"

// RiskViolation records one instance of a risk gate tripping, mirroring the
// teacher's RiskManager.GetViolations surface so an operator dashboard can
// show why the engine dropped back to PassiveMonitoring without the engine
// persisting anything beyond process memory (supplemented feature).
type RiskViolation struct {
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	DailyPnL  float64   `json:"dailyPnl"`
	Timestamp time.Time `json:"timestamp"`
}

const maxViolationHistory = 200

func (e *Engine) recordViolation(symbol, reason string, dailyPnL float64) {
	e.violMu.Lock()
	e.violations = append(e.violations, RiskViolation{
		Symbol:    symbol,
		Reason:    reason,
		DailyPnL:  dailyPnL,
		Timestamp: time.Now(),
	})
	if len(e.violations) > maxViolationHistory {
		e.violations = e.violations[len(e.violations)-maxViolationHistory:]
	}
	e.violMu.Unlock()
}

// GetViolations returns up to the last limit recorded risk violations, most
// recent last. limit <= 0 returns the full ring.
func (e *Engine) GetViolations(limit int) []RiskViolation {
	e.violMu.Lock()
	defer e.violMu.Unlock()
	if limit <= 0 || limit >= len(e.violations) {
		out := make([]RiskViolation, len(e.violations))
		copy(out, e.violations)
		return out
	}
	out := make([]RiskViolation, limit)
	copy(out, e.violations[len(e.violations)-limit:])
	return out
}
