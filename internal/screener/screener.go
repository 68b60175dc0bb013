// Package screener computes the per-symbol ScreenerScorecard the Strategy
// Evaluator consults, running the strategy-specific scoring algorithms of
// spec.md §4.4 on a small worker pool with a per-symbol submission throttle.
package screener

import (
	"sync"
	"time"

	"github.com/quantedge/derivengine/internal/cache"
	"github.com/quantedge/derivengine/internal/indicators"
	"github.com/quantedge/derivengine/internal/workers"
	"github.com/quantedge/derivengine/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// minSubmitInterval is the per-symbol throttle floor (spec.md §4.4: "≥0.5s
// between submissions").
const minSubmitInterval = 500 * time.Millisecond

// Scorer runs the screener's per-symbol jobs on a bounded pool.
type Scorer struct {
	logger *zap.Logger
	cache  *cache.Cache
	pool   *workers.Pool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewScorer constructs a Scorer backed by a 5-worker pool.
func NewScorer(logger *zap.Logger, c *cache.Cache) *Scorer {
	return &Scorer{
		logger:   logger.Named("screener"),
		cache:    c,
		pool:     workers.NewPool(logger, workers.DefaultPoolConfig("screener")),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Start launches the underlying worker pool.
func (s *Scorer) Start() { s.pool.Start() }

// Stop drains the underlying worker pool.
func (s *Scorer) Stop() { s.pool.Stop() }

// Submit schedules a scoring job for symbol if its per-symbol throttle
// allows it, dropping the request otherwise.
func (s *Scorer) Submit(symbol string, cfg types.Configuration, lossStreak int, onDone func(types.ScreenerScorecard)) {
	if !s.allow(symbol) {
		return
	}
	err := s.pool.Submit(workers.TaskFunc(func() error {
		snap, ok := s.cache.Snapshot(symbol)
		if !ok {
			return nil
		}
		now := time.Now()
		card := Score(cfg, snap, lossStreak, now)
		s.cache.SetScorecard(symbol, card)
		if cfg.ActiveStrategy == types.Strategy7 {
			s.cache.SetStrat7Cache(symbol, Strat7CacheFor(cfg, snap, now))
		}
		if onDone != nil {
			onDone(card)
		}
		return nil
	}))
	if err != nil {
		s.logger.Debug("screener job dropped, pool busy", zap.String("symbol", symbol))
	}
}

func (s *Scorer) allow(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[symbol]
	if !ok {
		lim = rate.NewLimiter(rate.Every(minSubmitInterval), 1)
		s.limiters[symbol] = lim
	}
	return lim.Allow()
}

// Score dispatches to the strategy-specific scoring algorithm and returns a
// fresh ScreenerScorecard.
func Score(cfg types.Configuration, st types.SymbolState, lossStreak int, now time.Time) types.ScreenerScorecard {
	isMultiplier := cfg.ContractType == types.ContractTypeMultiplier

	var card types.ScreenerScorecard
	switch cfg.ActiveStrategy {
	case types.Strategy1, types.Strategy2, types.Strategy3:
		card = crossoverScorecard(cfg, st, now)
	case types.Strategy4:
		card = snrPatternScorecard(st, now)
	case types.Strategy5:
		card = synthetic(st, isMultiplier, lossStreak, now)
	case types.Strategy6:
		card = legacyWeighted(st, now)
	case types.Strategy7:
		sevenCard, sevenCache := alignStrategy7(cfg, st, now)
		card = sevenCard
		_ = sevenCache // Scorer.Submit persists this via cache.SetStrat7Cache
	default:
		card = types.ScreenerScorecard{Signal: types.SignalWait, LastUpdate: now}
	}

	ring := types.FloatCandles(st.Rings[ltfGranularityFor(cfg)])
	card.ExpiryMin = suggestedExpiryMinutes(card.Forecast.ForecastPrices, lastClose(ring), card.ATR, card.Confidence, card.Direction == types.DirectionCall)
	card.Multiplier = suggestedMultiplier(relativeATR(ring), card.ADX, now)
	return card
}

// Strat7CacheFor computes Strategy 7's cache update alongside Score, since
// Score's ScreenerScorecard return has no room for the per-TF cache.
func Strat7CacheFor(cfg types.Configuration, st types.SymbolState, now time.Time) types.Strat7Cache {
	_, c := alignStrategy7(cfg, st, now)
	return c
}

func lastClose(ring []types.FloatCandle) float64 {
	if len(ring) == 0 {
		return 0
	}
	return ring[len(ring)-1].Close
}

// ltfGranularityFor returns the active strategy's lower timeframe, matching
// spec.md §4.5's per-strategy (HTF/LTF) pairs.
func ltfGranularityFor(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran15m
	case types.Strategy2:
		return types.Gran3m
	case types.Strategy3, types.Strategy4:
		return types.Gran1m
	default:
		return types.Gran1m
	}
}

// htfGranularityFor returns the active strategy's higher timeframe.
func htfGranularityFor(cfg types.Configuration) types.Granularity {
	switch cfg.ActiveStrategy {
	case types.Strategy1:
		return types.Gran1d
	case types.Strategy2:
		return types.Gran1h
	case types.Strategy3:
		return types.Gran15m
	case types.Strategy4:
		return types.Gran5m
	default:
		return types.Gran1h
	}
}

func crossoverScorecard(cfg types.Configuration, st types.SymbolState, now time.Time) types.ScreenerScorecard {
	ltf := types.FloatCandles(st.Rings[ltfGranularityFor(cfg)])
	tally, rec := CompositeVote(ltf)

	signal := types.SignalWait
	direction := types.DirectionCall
	if tally < 0 {
		direction = types.DirectionPut
	}
	if rec == Buy || rec == StrongBuy {
		signal = types.SignalBuy
	} else if rec == Sell || rec == StrongSell {
		signal = types.SignalSell
	}

	return types.ScreenerScorecard{
		Confidence: tally * 100,
		Direction:  direction,
		Signal:     signal,
		Threshold:  10,
		Regime:     string(rec),
		ADX:        indicators.ADX(ltf, 14),
		ATR:        indicators.ATR(ltf, 14),
		LastUpdate: now,
	}
}

func snrPatternScorecard(st types.SymbolState, now time.Time) types.ScreenerScorecard {
	ltf := types.FloatCandles(st.Rings[types.Gran1m])
	m5 := types.FloatCandles(st.Rings[types.Gran5m])
	pattern := indicators.ClassifyPattern(ltf)
	score := indicators.ScoreReversalPattern(pattern)

	direction := types.DirectionCall
	if !indicators.IsBullishPattern(pattern) {
		direction = types.DirectionPut
	}

	closes5 := indicators.Closes(m5)
	forecastPrices, correlation := indicators.EchoForecast(closes5, 20, 10)
	_, _, final := indicators.ForecastExtremes(forecastPrices)

	return types.ScreenerScorecard{
		Confidence: float64(score) * 25,
		Direction:  direction,
		Signal:     types.SignalWait, // Strategy 4's evaluator decides BUY/SELL against zone touches
		Threshold:  50,
		Regime:     string(pattern),
		ATR:        indicators.ATR(m5, 14),
		ATR1m:      indicators.ATR(ltf, 14),
		Forecast:   types.EchoForecast{ForecastPrices: forecastPrices, Correlation: correlation, Final: final},
		LastUpdate: now,
	}
}
