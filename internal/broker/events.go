// Package broker owns the single persistent WebSocket session to the
// Deriv API and multiplexes request/response correlation over it.
package broker

import "github.com/quantedge/derivengine/pkg/types"

// Event is a typed message dispatched from the broker's read loop to the
// engine worker. Exactly one of the Event's payload fields is meaningful,
// selected by Type.
type Event struct {
	Type EventType

	Authorized      *AuthorizedEvent
	Balance         *BalanceEvent
	Candles         *CandlesEvent
	Tick            *TickEvent
	ContractUpdate  *ContractUpdateEvent
	ContractsFor    *ContractsForEvent
	BuyAck          *BuyAckEvent
	SellAck         *SellAckEvent
	APIError        *APIErrorEvent
}

// EventType discriminates the Event union.
type EventType string

const (
	EventAuthorized     EventType = "authorized"
	EventBalance        EventType = "balance"
	EventCandles        EventType = "candles"
	EventTick           EventType = "tick"
	EventContractUpdate EventType = "contract_update"
	EventContractsFor   EventType = "contracts_for"
	EventBuyAck         EventType = "buy_ack"
	EventSellAck        EventType = "sell_ack"
	EventAPIError       EventType = "api_error"
)

type AuthorizedEvent struct {
	Balance float64
}

type BalanceEvent struct {
	Balance float64
}

type CandlesEvent struct {
	Symbol      string
	Granularity types.Granularity
	Candles     []types.Candle
}

type TickEvent struct {
	Symbol         string
	Epoch          int64
	Quote          float64
	SubscriptionID string
}

type ContractUpdateEvent struct {
	ContractID   string
	EntryTick    float64
	HasEntryTick bool
	Profit       float64
	IsSold       bool
	SellPrice    float64
}

type ContractsForEvent struct {
	Symbol      string
	Multipliers []float64
}

type BuyAckEvent struct {
	ContractID string
	Stake      float64
	Echo       map[string]any
}

type SellAckEvent struct {
	ContractID string
}

// APIErrorCode enumerates broker-reported error classes relevant to the
// engine's error taxonomy (spec.md §7).
type APIErrorCode string

const (
	ErrAuthorizationRequired APIErrorCode = "AuthorizationRequired"
	ErrInvalidSymbol         APIErrorCode = "InvalidSymbol"
	ErrInsufficientBalance   APIErrorCode = "InsufficientBalance"
	ErrOther                 APIErrorCode = "Other"
)

type APIErrorEvent struct {
	Code    APIErrorCode
	Message string
	ReqID   string
}
