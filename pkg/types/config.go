// Package types provides shared domain type definitions for the trading engine.
package types

import "time"

// InProgressCandle is the candle currently being assembled from ticks for a
// given granularity. Exactly one exists per (symbol, granularity) at a time.
type InProgressCandle struct {
	Candle
	BucketStart int64 `json:"bucketStart"`
}

// SymbolState is the per-symbol slice of the Market Data Cache.
//
// Ownership: mutated only by the engine worker; readers receive copies of
// the relevant fields (copy-on-read snapshots), never the struct itself.
type SymbolState struct {
	Symbol string `json:"symbol"`

	// Rings keyed by granularity in seconds, each a bounded, strictly
	// epoch-monotonic sequence of closed candles.
	Rings map[Granularity][]Candle `json:"rings"`

	LastTick       float64 `json:"lastTick"`
	HasLastTick    bool    `json:"hasLastTick"`
	SubscriptionID string  `json:"subscriptionId"`

	InProgress map[Granularity]InProgressCandle `json:"inProgress"`

	HTFOpen    float64 `json:"htfOpen"`
	HasHTFOpen bool    `json:"hasHtfOpen"`
	HTFEpoch   int64   `json:"htfEpoch"`

	// LastTradeLTF is the dedup key: the LTF epoch of the last epoch an
	// Open intent was emitted for, persisted across reconnects.
	LastTradeLTF    int64 `json:"lastTradeLtf"`
	HasLastTradeLTF bool  `json:"hasLastTradeLtf"`

	ConsecutiveWins   int  `json:"consecutiveWins"`
	ConsecutiveLosses int  `json:"consecutiveLosses"`
	DailyCrosses      int  `json:"dailyCrosses"`
	LastCrossSide     Side `json:"lastCrossSide"`
	HasLastCrossSide  bool `json:"hasLastCrossSide"`
	HourlyTradeCount  int  `json:"hourlyTradeCount"`
	LastTradeHour     int  `json:"lastTradeHour"`

	SNRZones []SNRZone `json:"snrZones"`

	Fractals    []int `json:"fractals"`
	OrderBlocks []int `json:"orderBlocks"`
	FVGs        []int `json:"fvgs"`

	Scorecard    ScreenerScorecard `json:"scorecard"`
	HasScorecard bool              `json:"hasScorecard"`

	// Strat7Cache mirrors the original's per-TF recommendation cache used
	// by Strategy 7's debounce logic.
	Strat7Cache        Strat7Cache `json:"strat7Cache"`
	LastStrat7SmallRec string      `json:"lastStrat7SmallRec"`
}

// Strat7Cache holds the last computed TA recommendation per configured
// timeframe for Strategy 7's multi-TF alignment check.
type Strat7Cache struct {
	Small, Mid, High string
	Timestamp        time.Time
}

// RingCap returns the bounded ring capacity for a granularity — lower for
// shorter timeframes, matching spec.md's "<=200 entries, lower for short TFs".
func RingCap(g Granularity) int {
	switch g {
	case Gran1m:
		return 120
	case Gran3m:
		return 150
	case Gran5m:
		return 180
	default:
		return 200
	}
}

// ServerConfig configures the ambient HTTP + push-socket surface.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MetricsPort    int           `json:"metricsPort"`
}

// BrokerConfig configures the Broker Session's connection to Deriv.
type BrokerConfig struct {
	Endpoint        string        `json:"endpoint"`
	AppID           string        `json:"appId"`
	PingInterval    time.Duration `json:"pingInterval"`
	PingTimeout     time.Duration `json:"pingTimeout"`
	ReconnectDelay  time.Duration `json:"reconnectDelay"`
	RequestTimeout  time.Duration `json:"requestTimeout"`
	HistoryInterval time.Duration `json:"historyInterval"`
}

// DefaultBrokerConfig mirrors the literals named in spec.md §4.2.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Endpoint:        "wss://ws.binaryws.com/websockets/v3",
		PingInterval:    30 * time.Second,
		PingTimeout:     10 * time.Second,
		ReconnectDelay:  5 * time.Second,
		RequestTimeout:  10 * time.Second,
		HistoryInterval: time.Second,
	}
}
