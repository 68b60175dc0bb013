package execution

import (
	"github.com/quantedge/derivengine/internal/broker"
	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/internal/strategy"
	"github.com/quantedge/derivengine/pkg/types"
)

// durationFloorSeconds is the broker's minimum contract duration (spec.md §4.7).
const durationFloorSeconds = 15

const (
	multiplierSLAtrMult = 1.5
	multiplierTPAtrMult = 3.0
)

// buildOrderSpec translates an Open intent into the broker's order shape.
// Multiplier contracts get a limit_order computed from the 1h ATR, mapped to
// a USD profit target through the same delta-price/entry*multiplier*stake
// formula the Position Monitor uses to invert TP/SL prices (spec.md §4.7).
func (e *Executor) buildOrderSpec(symbol string, intent strategy.Intent, cfg types.Configuration, stake float64) broker.OrderSpec {
	direction := types.DirectionCall
	if intent.Side == types.SideShort {
		direction = types.DirectionPut
	}

	duration := intent.ExpirySeconds
	if duration < durationFloorSeconds {
		duration = durationFloorSeconds
	}

	spec := broker.OrderSpec{
		Symbol:       symbol,
		Stake:        stake,
		Direction:    direction,
		ContractType: cfg.ContractType,
		Duration:     duration,
		Multiplier:   cfg.MultiplierValue,
	}

	if cfg.ContractType != types.ContractTypeMultiplier {
		return spec
	}

	ring := types.FloatCandles(e.cache.RingFor(symbol, types.Gran1h))
	entry := lastClose(ring)
	if entry <= 0 || cfg.MultiplierValue <= 0 || stake <= 0 {
		return spec
	}
	atr := indicators.ATR(ring, 14)
	if atr <= 0 {
		return spec
	}

	slDelta := multiplierSLAtrMult * atr
	tpDelta := multiplierTPAtrMult * atr
	spec.StopLoss = (slDelta / entry) * cfg.MultiplierValue * stake
	spec.TakeProfit = (tpDelta / entry) * cfg.MultiplierValue * stake
	spec.HasLimits = true
	return spec
}

func lastClose(ring []types.FloatCandle) float64 {
	if len(ring) == 0 {
		return 0
	}
	return ring[len(ring)-1].Close
}
