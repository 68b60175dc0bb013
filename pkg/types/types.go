// Package types provides shared domain type definitions for the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the directional side of a contract or signal.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ContractType distinguishes the broker's two tradable product families.
type ContractType string

const (
	ContractTypeRiseFall   ContractType = "rise_fall"
	ContractTypeMultiplier ContractType = "multiplier"
)

// ContractStatus is the lifecycle state of an open position.
type ContractStatus string

const (
	ContractStatusOpened  ContractStatus = "opened"
	ContractStatusActive  ContractStatus = "active"
	ContractStatusClosing ContractStatus = "closing"
	ContractStatusSold    ContractStatus = "sold"
)

// ZoneType classifies an SNR zone.
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
	ZoneFlip       ZoneType = "flip"
)

// ScreenerSignal is the screener's trade bias for a symbol.
type ScreenerSignal string

const (
	SignalBuy  ScreenerSignal = "BUY"
	SignalSell ScreenerSignal = "SELL"
	SignalWait ScreenerSignal = "WAIT"
)

// Direction is the intended contract direction for the broker's order spec.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Granularity is a candle timeframe in seconds, matching the broker's allowed set.
type Granularity int64

const (
	Gran1m  Granularity = 60
	Gran3m  Granularity = 180
	Gran5m  Granularity = 300
	Gran15m Granularity = 900
	Gran1h  Granularity = 3600
	Gran4h  Granularity = 14400
	Gran1d  Granularity = 86400
)

// Strategy identifies one of the seven pluggable decision rules.
type Strategy string

const (
	Strategy1 Strategy = "strategy_1"
	Strategy2 Strategy = "strategy_2"
	Strategy3 Strategy = "strategy_3"
	Strategy4 Strategy = "strategy_4"
	Strategy5 Strategy = "strategy_5"
	Strategy6 Strategy = "strategy_6"
	Strategy7 Strategy = "strategy_7"
)

// EntryType controls whether the evaluator wakes on every tick or only on LTF close.
type EntryType string

const (
	EntryTypeTick        EntryType = "tick"
	EntryTypeCandleClose EntryType = "candle_close"
)

// EngineState is the Engine Coordinator's lifecycle state.
type EngineState string

const (
	EngineStateStopped           EngineState = "stopped"
	EngineStatePassiveMonitoring EngineState = "passive_monitoring"
	EngineStateTrading           EngineState = "trading"
)

// Candle is a single OHLC bar. Immutable once closed.
//
// OHLC fields carry decimal.Decimal precision so cache storage and contract
// money math never accumulate float drift. Indicator and strategy code never
// needs that precision, so FloatCandle mirrors this shape in float64 for the
// single conversion boundary at the cache-snapshot edge (Float, FloatCandles).
type Candle struct {
	Epoch int64           `json:"epoch"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Valid reports whether the candle satisfies low <= min(open,close) <= max(open,close) <= high.
func (c Candle) Valid() bool {
	lo, hi := c.Open, c.Open
	if c.Close.LessThan(lo) {
		lo = c.Close
	}
	if c.Close.GreaterThan(hi) {
		hi = c.Close
	}
	return !c.Low.GreaterThan(lo) && !hi.GreaterThan(c.High)
}

// Float converts a Candle to its float64 mirror for indicator consumption.
func (c Candle) Float() FloatCandle {
	return FloatCandle{
		Epoch: c.Epoch,
		Open:  c.Open.InexactFloat64(),
		High:  c.High.InexactFloat64(),
		Low:   c.Low.InexactFloat64(),
		Close: c.Close.InexactFloat64(),
	}
}

// FloatCandle is the float64 mirror of Candle consumed by the indicators
// package and every strategy/screener comparison, none of which need
// money-precision decimal arithmetic.
type FloatCandle struct {
	Epoch int64
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Valid reports whether the candle satisfies low <= min(open,close) <= max(open,close) <= high.
func (c FloatCandle) Valid() bool {
	lo, hi := c.Open, c.Open
	if c.Close < lo {
		lo = c.Close
	}
	if c.Close > hi {
		hi = c.Close
	}
	return c.Low <= lo && hi <= c.High
}

// FloatCandles converts a ring of Candles to their float64 mirrors. Called
// once at each ring-extraction site before indicator/strategy consumption.
func FloatCandles(in []Candle) []FloatCandle {
	out := make([]FloatCandle, len(in))
	for i, c := range in {
		out[i] = c.Float()
	}
	return out
}

// SNRZone is a clustered support/resistance level.
type SNRZone struct {
	Price           float64  `json:"price"`
	Type            ZoneType `json:"type"`
	Touches         int      `json:"touches"`
	LifetimeTouches int      `json:"lifetimeTouches"`
}

// Retired reports whether a zone should be dropped from the cache.
func (z SNRZone) Retired() bool {
	return z.LifetimeTouches > 5
}

// EchoForecast is the output of the echo-forecast correlation template match.
type EchoForecast struct {
	ForecastPrices []float64 `json:"forecastPrices"`
	Correlation    float64   `json:"correlation"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Final          float64   `json:"final"`
}

// Contract is an open position tracked by the Position Monitor.
type Contract struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Side             Side            `json:"side"`
	ContractType     ContractType    `json:"contractType"`
	Stake            decimal.Decimal `json:"stake"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	HasEntryPrice    bool            `json:"hasEntryPrice"`
	PnL              decimal.Decimal `json:"pnl"`
	Multiplier       decimal.Decimal `json:"multiplier,omitempty"`
	TPPrice          decimal.Decimal `json:"tpPrice,omitempty"`
	HasTPPrice       bool            `json:"hasTpPrice,omitempty"`
	SLPrice          decimal.Decimal `json:"slPrice,omitempty"`
	HasSLPrice       bool            `json:"hasSlPrice,omitempty"`
	PurchaseTime     time.Time      `json:"purchaseTime,omitempty"`
	HasPurchaseTime  bool           `json:"hasPurchaseTime,omitempty"`
	ExpiryTime       time.Time      `json:"expiryTime,omitempty"`
	HasExpiryTime    bool           `json:"hasExpiryTime,omitempty"`
	Status           ContractStatus `json:"status"`
	IsClosing        bool           `json:"isClosing"`
	LastCloseAttempt time.Time      `json:"lastCloseAttempt,omitempty"`
	IsFreeride       bool           `json:"isFreeride"`
	EntrySnapshot    map[string]any `json:"entrySnapshot,omitempty"`
}

// ScreenerScorecard is the per-symbol composite read the evaluator consults.
type ScreenerScorecard struct {
	Confidence float64        `json:"confidence"`
	Direction  Direction      `json:"direction"`
	Signal     ScreenerSignal `json:"signal"`
	Threshold  float64        `json:"threshold"`
	Regime     string         `json:"regime"`
	Trend      float64        `json:"trend"`
	Momentum   float64        `json:"momentum"`
	Volatility float64        `json:"volatility"`
	Structure  float64        `json:"structure"`
	ADX        float64        `json:"adx"`
	ATR        float64        `json:"atr"`
	ATR1m      float64        `json:"atr1m"`
	ATR24h     float64        `json:"atr24h"`
	ExpiryMin  float64        `json:"expiryMin"`
	Multiplier float64        `json:"multiplier"`
	Forecast   EchoForecast   `json:"forecast"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

// Valid enforces signal-confidence consistency: signal != WAIT implies |confidence| >= threshold.
func (s ScreenerScorecard) Valid() bool {
	if s.Signal == SignalWait {
		return true
	}
	c := s.Confidence
	if c < 0 {
		c = -c
	}
	return c >= s.Threshold
}

// Configuration is the whitelisted set of engine-recognized options.
//
// Ownership: the engine reads this value; an external updater replaces it
// atomically. Unknown keys present in a raw config file are ignored.
type Configuration struct {
	APIToken           string        `json:"apiToken"`
	AppID              string        `json:"appId"`
	Symbols            []string      `json:"symbols"`
	IsDemo             bool          `json:"isDemo"`
	ActiveStrategy     Strategy      `json:"activeStrategy"`
	ContractType       ContractType  `json:"contractType"`
	MultiplierValue    float64       `json:"multiplierValue"`
	CustomExpiry       string        `json:"customExpiry"`
	EntryType          EntryType     `json:"entryType"`
	BalanceValue       float64       `json:"balanceValue"`
	UseFixedBalance    bool          `json:"useFixedBalance"`
	MaxDailyLossPct    float64       `json:"maxDailyLossPct"`
	MaxDailyProfitPct  float64       `json:"maxDailyProfitPct"`
	TPEnabled          bool          `json:"tpEnabled"`
	TPValue            float64       `json:"tpValue"`
	SLEnabled          bool          `json:"slEnabled"`
	SLValue            float64       `json:"slValue"`
	ForceCloseEnabled  bool          `json:"forceCloseEnabled"`
	ForceCloseDuration time.Duration `json:"forceCloseDuration"`
	LogLevel           string        `json:"logLevel"`
	Strat7SmallTF      string        `json:"strat7SmallTf"`
	Strat7MidTF        string        `json:"strat7MidTf"`
	Strat7HighTF       string        `json:"strat7HighTf"`
	// BinaryFailsafePct is the configurable binary TP/SL approximation
	// (spec's ±1% fallback, made configurable per the open question).
	BinaryFailsafePct float64 `json:"binaryFailsafePct"`
}

// SymbolSet returns Symbols as a lookup set.
func (c Configuration) SymbolSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		set[s] = struct{}{}
	}
	return set
}

// Equal reports whether two configurations are deep-equal for the purpose of
// suppressing redundant resubscribe/refetch/reauth work on a no-op update.
func (c Configuration) Equal(o Configuration) bool {
	if len(c.Symbols) != len(o.Symbols) {
		return false
	}
	aSet, bSet := c.SymbolSet(), o.SymbolSet()
	for s := range aSet {
		if _, ok := bSet[s]; !ok {
			return false
		}
	}
	return c.APIToken == o.APIToken &&
		c.AppID == o.AppID &&
		c.IsDemo == o.IsDemo &&
		c.ActiveStrategy == o.ActiveStrategy &&
		c.ContractType == o.ContractType &&
		c.MultiplierValue == o.MultiplierValue &&
		c.CustomExpiry == o.CustomExpiry &&
		c.EntryType == o.EntryType &&
		c.BalanceValue == o.BalanceValue &&
		c.UseFixedBalance == o.UseFixedBalance &&
		c.MaxDailyLossPct == o.MaxDailyLossPct &&
		c.MaxDailyProfitPct == o.MaxDailyProfitPct &&
		c.TPEnabled == o.TPEnabled &&
		c.TPValue == o.TPValue &&
		c.SLEnabled == o.SLEnabled &&
		c.SLValue == o.SLValue &&
		c.ForceCloseEnabled == o.ForceCloseEnabled &&
		c.ForceCloseDuration == o.ForceCloseDuration &&
		c.LogLevel == o.LogLevel &&
		c.Strat7SmallTF == o.Strat7SmallTF &&
		c.Strat7MidTF == o.Strat7MidTF &&
		c.Strat7HighTF == o.Strat7HighTF &&
		c.BinaryFailsafePct == o.BinaryFailsafePct
}

// Diff describes what changed between two configurations, driving the
// minimal reconfiguration (resubscribe / refetch / reauth).
type Diff struct {
	SymbolsAdded       []string
	SymbolsRemoved     []string
	StrategyChanged    bool
	CredentialsChanged bool
}

// DiffConfig computes the minimal set of reactions needed to move from prev to next.
func DiffConfig(prev, next Configuration) Diff {
	var d Diff
	prevSet, nextSet := prev.SymbolSet(), next.SymbolSet()
	for s := range nextSet {
		if _, ok := prevSet[s]; !ok {
			d.SymbolsAdded = append(d.SymbolsAdded, s)
		}
	}
	for s := range prevSet {
		if _, ok := nextSet[s]; !ok {
			d.SymbolsRemoved = append(d.SymbolsRemoved, s)
		}
	}
	d.StrategyChanged = prev.ActiveStrategy != next.ActiveStrategy
	d.CredentialsChanged = prev.APIToken != next.APIToken || prev.AppID != next.AppID || prev.IsDemo != next.IsDemo
	return d
}

// SessionMetrics tracks in-memory, non-persisted session statistics.
type SessionMetrics struct {
	AccountBalance    float64    `json:"accountBalance"`
	AvailableBalance  float64    `json:"availableBalance"`
	Equity            float64    `json:"equity"`
	DailyStartBalance float64    `json:"dailyStartBalance"`
	DailyStartDate    time.Time  `json:"dailyStartDate"`
	FloatingPnL       float64    `json:"floatingPnl"`
	RealizedPnL       float64    `json:"realizedPnl"`
	Wins              int        `json:"wins"`
	Losses            int        `json:"losses"`
	OpenTrades        []Contract `json:"openTrades"`
}

// DailyPnLPct computes (equity - daily_start_balance) / daily_start_balance * 100.
func (m SessionMetrics) DailyPnLPct() float64 {
	if m.DailyStartBalance == 0 {
		return 0
	}
	return (m.Equity - m.DailyStartBalance) / m.DailyStartBalance * 100
}
