package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
)

// SubscribeTicks subscribes to the tick stream for a symbol. Dropped
// silently if the socket is currently disconnected (spec.md §4.2 — ticks
// are not queued across a disconnect).
func (s *Session) SubscribeTicks(symbol string) {
	if err := s.send(rawFrame{"ticks": symbol, "subscribe": 1}); err != nil {
		s.logger.Debug("subscribe dropped, not connected", zap.String("symbol", symbol))
	}
}

// Forget cancels a subscription by id.
func (s *Session) Forget(subscriptionID string) {
	if err := s.send(rawFrame{"forget": subscriptionID}); err != nil {
		s.logger.Debug("forget dropped, not connected", zap.String("subscriptionId", subscriptionID))
	}
}

// FetchCandles enqueues a ticks_history request for (symbol, granularity).
// Requests are deduplicated for the same candle boundary and drained by the
// history worker at >= 1 request/second (spec.md §4.2).
func (s *Session) FetchCandles(symbol string, granularity types.Granularity, count int) {
	key := fmt.Sprintf("%s:%d", symbol, granularity)
	boundary := time.Now().Unix() / int64(granularity)

	s.pendingMu.Lock()
	lastBoundary, seen := s.historySeen[key]
	s.pendingMu.Unlock()
	if seen && lastBoundary == boundary {
		return
	}

	select {
	case s.historyQueue <- historyRequest{symbol: symbol, granularity: granularity, count: count}:
	default:
		s.logger.Warn("history queue full, dropping request", zap.String("symbol", symbol))
	}
}

func (s *Session) historyWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case req := <-s.historyQueue:
			if err := s.historyLimiter.Wait(ctx); err != nil {
				return
			}
			s.doFetchCandles(req)
		}
	}
}

func (s *Session) doFetchCandles(req historyRequest) {
	boundary := time.Now().Unix() / int64(req.granularity)
	key := fmt.Sprintf("%s:%d", req.symbol, req.granularity)

	if err := s.send(rawFrame{
		"ticks_history": req.symbol,
		"style":         "candles",
		"granularity":   int64(req.granularity),
		"count":         req.count,
		"end":           "latest",
	}); err != nil {
		s.logger.Debug("history fetch dropped, not connected", zap.String("symbol", req.symbol))
		return
	}

	s.pendingMu.Lock()
	s.historySeen[key] = boundary
	s.pendingMu.Unlock()
}

// OrderSpec is the broker order shape for either a binary or a multiplier
// contract (spec.md §4.7).
type OrderSpec struct {
	Symbol       string
	Stake        float64
	Direction    types.Direction
	ContractType types.ContractType
	Duration     int64
	Multiplier   float64
	TakeProfit   float64
	StopLoss     float64
	HasLimits    bool
}

// PlaceOrder sends a buy request for the given order spec.
func (s *Session) PlaceOrder(spec OrderSpec) error {
	parameters := map[string]any{
		"amount":   spec.Stake,
		"basis":    "stake",
		"currency": "USD",
		"symbol":   spec.Symbol,
	}

	switch spec.ContractType {
	case types.ContractTypeMultiplier:
		contractType := "MULTUP"
		if spec.Direction == types.DirectionPut {
			contractType = "MULTDOWN"
		}
		parameters["contract_type"] = contractType
		parameters["multiplier"] = spec.Multiplier
		if spec.HasLimits {
			parameters["limit_order"] = map[string]any{
				"take_profit": spec.TakeProfit,
				"stop_loss":   spec.StopLoss,
			}
		}
	default:
		parameters["contract_type"] = string(spec.Direction)
		parameters["duration"] = spec.Duration
		parameters["duration_unit"] = "s"
	}

	return s.send(rawFrame{
		"buy":        1,
		"price":      spec.Stake,
		"parameters": parameters,
		"passthrough": map[string]any{
			"symbol":       spec.Symbol,
			"direction":    string(spec.Direction),
			"contractType": string(spec.ContractType),
			"duration":     spec.Duration,
			"multiplier":   spec.Multiplier,
		},
	})
}

// SellContract requests closure of an open contract.
func (s *Session) SellContract(contractID string) error {
	return s.send(rawFrame{"sell": contractID, "price": 0})
}

// FetchContractsFor requests the multiplier catalogue for a symbol.
func (s *Session) FetchContractsFor(symbol string) error {
	return s.send(rawFrame{"contracts_for": symbol})
}
