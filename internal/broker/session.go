package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/quantedge/derivengine/pkg/types"
	"github.com/quantedge/derivengine/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session owns the single persistent WebSocket connection to the Deriv API.
// It is the sole reader and writer of the socket; all outbound frames go
// through send, which holds the session mutex for the whole write (spec.md §5).
type Session struct {
	logger *zap.Logger
	cfg    types.BrokerConfig

	mu      sync.RWMutex
	conn    *websocket.Conn
	running bool
	token   string

	pending   map[string]chan rawFrame
	pendingMu sync.Mutex

	historyQueue   chan historyRequest
	historyLimiter *rate.Limiter
	historySeen    map[string]int64 // (symbol,granularity) -> epoch boundary of last fetch

	handler func(Event)

	stop   chan struct{}
	closed chan struct{}
}

type rawFrame map[string]any

type historyRequest struct {
	symbol      string
	granularity types.Granularity
	count       int
}

// NewSession constructs a Session bound to the given broker configuration.
func NewSession(logger *zap.Logger, cfg types.BrokerConfig) *Session {
	return &Session{
		logger:         logger.Named("broker"),
		cfg:            cfg,
		pending:        make(map[string]chan rawFrame),
		historyQueue:   make(chan historyRequest, 256),
		historyLimiter: rate.NewLimiter(rate.Every(cfg.HistoryInterval), 1),
		historySeen:    make(map[string]int64),
		stop:           make(chan struct{}),
		closed:         make(chan struct{}),
	}
}

// OnEvent registers the single consumer of typed broker events.
func (s *Session) OnEvent(handler func(Event)) {
	s.handler = handler
}

// Connect starts the background I/O loop (connect/reconnect, read, history
// drain, keepalive) with the given token and app ID; ApplyCredentials
// replaces the token later.
func (s *Session) Connect(ctx context.Context, token, appID string) {
	s.mu.Lock()
	s.token = token
	s.cfg.AppID = appID
	s.running = true
	s.mu.Unlock()

	go s.ioLoop(ctx)
	go s.historyWorker(ctx)
}

// ApplyCredentials updates the token used on the next (re)connect, matching
// spec.md §4.2's "wait for a new token via apply_credentials()" semantics
// after AuthorizationRequired.
func (s *Session) ApplyCredentials(token string) {
	s.mu.Lock()
	s.token = token
	s.running = true
	s.mu.Unlock()
}

// Stop tears down the session; loops unwind within the cancellation window.
func (s *Session) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	close(s.stop)
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *Session) ioLoop(ctx context.Context) {
	defer close(s.closed)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		s.mu.RLock()
		running := s.running
		s.mu.RUnlock()
		if !running {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-time.After(s.cfg.ReconnectDelay):
				continue
			}
		}

		if err := s.connectOnce(ctx); err != nil {
			s.logger.Warn("connect failed, backing off", zap.Error(err), zap.Duration("delay", s.cfg.ReconnectDelay))
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-time.After(s.cfg.ReconnectDelay):
			}
			continue
		}

		s.readUntilClosed(ctx)

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}
	}
}

func (s *Session) connectOnce(ctx context.Context) error {
	u := fmt.Sprintf("%s?app_id=%s", s.cfg.Endpoint, url.QueryEscape(s.cfg.AppID))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	token := s.token
	s.mu.Unlock()

	if err := s.send(rawFrame{"authorize": token}); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	s.logger.Info("connected to broker")
	return nil
}

func (s *Session) readUntilClosed(ctx context.Context) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.PingInterval + s.cfg.PingTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PingInterval + s.cfg.PingTimeout))
		return nil
	})

	pingStop := make(chan struct{})
	go s.pingLoop(conn, pingStop)
	defer close(pingStop)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn("read error, reconnecting", zap.Error(err))
			return
		}
		s.dispatch(message)
	}
}

func (s *Session) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.PingTimeout)); err != nil {
				return
			}
		}
	}
}

// send writes a request frame as-is (request adds the passthrough.req_id).
// The session mutex is held across the write, so concurrent callers are
// serialized.
func (s *Session) send(frame rawFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.running {
		return fmt.Errorf("not connected")
	}
	return s.conn.WriteJSON(frame)
}

// request sends a correlated request and blocks until the matching response
// arrives or the request timeout elapses.
func (s *Session) request(ctx context.Context, frame rawFrame) (rawFrame, error) {
	reqID := utils.GenerateRequestID()
	frame["passthrough"] = map[string]any{"req_id": reqID}

	ch := make(chan rawFrame, 1)
	s.pendingMu.Lock()
	s.pending[reqID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
	}()

	if err := s.send(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(s.cfg.RequestTimeout):
		return nil, fmt.Errorf("request %s timed out after %s", reqID, s.cfg.RequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) dispatch(message []byte) {
	var frame rawFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		s.logger.Warn("dropping unparseable frame", zap.Error(err))
		return
	}

	if echo, ok := frame["echo_req"].(map[string]any); ok {
		if passthrough, ok := echo["passthrough"].(map[string]any); ok {
			if reqID, ok := passthrough["req_id"].(string); ok {
				s.pendingMu.Lock()
				ch, exists := s.pending[reqID]
				s.pendingMu.Unlock()
				if exists {
					ch <- frame
				}
			}
		}
	}

	msgType, _ := frame["msg_type"].(string)
	if errPayload, ok := frame["error"].(map[string]any); ok {
		code, _ := errPayload["code"].(string)
		message, _ := errPayload["message"].(string)
		s.emitError(code, message)
		return
	}

	switch msgType {
	case "authorize":
		s.handleAuthorize(frame)
	case "balance":
		s.handleBalance(frame)
	case "candles":
		s.handleCandles(frame)
	case "tick":
		s.handleTick(frame)
	case "proposal_open_contract":
		s.handleContractUpdate(frame)
	case "contracts_for":
		s.handleContractsFor(frame)
	case "buy":
		s.handleBuy(frame)
	case "sell":
		s.handleSell(frame)
	}
}

func (s *Session) emitError(code, message string) {
	apiCode := ErrOther
	switch code {
	case "AuthorizationRequired":
		apiCode = ErrAuthorizationRequired
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	case "InvalidSymbol":
		apiCode = ErrInvalidSymbol
	case "InsufficientBalance":
		apiCode = ErrInsufficientBalance
	}
	s.emit(Event{Type: EventAPIError, APIError: &APIErrorEvent{Code: apiCode, Message: message}})
}

func (s *Session) emit(e Event) {
	if s.handler != nil {
		s.handler(e)
	}
}

func (s *Session) handleAuthorize(frame rawFrame) {
	auth, _ := frame["authorize"].(map[string]any)
	balance, _ := auth["balance"].(float64)
	s.emit(Event{Type: EventAuthorized, Authorized: &AuthorizedEvent{Balance: balance}})

	s.send(rawFrame{"balance": 1, "subscribe": 1})
	s.send(rawFrame{"proposal_open_contract": 1, "subscribe": 1})
}

func (s *Session) handleBalance(frame rawFrame) {
	bal, _ := frame["balance"].(map[string]any)
	balance, _ := bal["balance"].(float64)
	s.emit(Event{Type: EventBalance, Balance: &BalanceEvent{Balance: balance}})
}

func (s *Session) handleCandles(frame rawFrame) {
	echo, _ := frame["echo_req"].(map[string]any)
	symbol, _ := echo["ticks_history"].(string)
	granFloat, _ := echo["granularity"].(float64)
	granularity := types.Granularity(granFloat)

	rawCandles, _ := frame["candles"].([]any)
	candles := make([]types.Candle, 0, len(rawCandles))
	for _, rc := range rawCandles {
		m, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		candles = append(candles, types.Candle{
			Epoch: int64(asFloat(m["epoch"])),
			Open:  decimal.NewFromFloat(asFloat(m["open"])),
			High:  decimal.NewFromFloat(asFloat(m["high"])),
			Low:   decimal.NewFromFloat(asFloat(m["low"])),
			Close: decimal.NewFromFloat(asFloat(m["close"])),
		})
	}
	s.emit(Event{Type: EventCandles, Candles: &CandlesEvent{Symbol: symbol, Granularity: granularity, Candles: candles}})
}

func (s *Session) handleTick(frame rawFrame) {
	tick, _ := frame["tick"].(map[string]any)
	symbol, _ := tick["symbol"].(string)
	subID, _ := tick["id"].(string)
	s.emit(Event{Type: EventTick, Tick: &TickEvent{
		Symbol:         symbol,
		Epoch:          int64(asFloat(tick["epoch"])),
		Quote:          asFloat(tick["quote"]),
		SubscriptionID: subID,
	}})
}

func (s *Session) handleContractUpdate(frame rawFrame) {
	poc, _ := frame["proposal_open_contract"].(map[string]any)
	update := &ContractUpdateEvent{
		ContractID: fmt.Sprintf("%v", poc["contract_id"]),
		Profit:     asFloat(poc["profit"]),
		IsSold:     asFloat(poc["is_sold"]) == 1,
		SellPrice:  asFloat(poc["sell_price"]),
	}
	if entry, ok := poc["entry_tick"]; ok {
		update.EntryTick = asFloat(entry)
		update.HasEntryTick = true
	}
	s.emit(Event{Type: EventContractUpdate, ContractUpdate: update})
}

func (s *Session) handleContractsFor(frame rawFrame) {
	cf, _ := frame["contracts_for"].(map[string]any)
	echo, _ := frame["echo_req"].(map[string]any)
	symbol, _ := echo["contracts_for"].(string)
	var multipliers []float64
	if available, ok := cf["available"].([]any); ok {
		for _, a := range available {
			m, ok := a.(map[string]any)
			if !ok {
				continue
			}
			if mult, ok := m["multiplier"]; ok {
				multipliers = append(multipliers, asFloat(mult))
			}
		}
	}
	s.emit(Event{Type: EventContractsFor, ContractsFor: &ContractsForEvent{Symbol: symbol, Multipliers: multipliers}})
}

func (s *Session) handleBuy(frame rawFrame) {
	buy, _ := frame["buy"].(map[string]any)
	echo, _ := frame["echo_req"].(map[string]any)
	passthrough, _ := echo["passthrough"].(map[string]any)
	s.emit(Event{Type: EventBuyAck, BuyAck: &BuyAckEvent{
		ContractID: fmt.Sprintf("%v", buy["contract_id"]),
		Stake:      asFloat(buy["buy_price"]),
		Echo:       passthrough,
	}})
}

func (s *Session) handleSell(frame rawFrame) {
	sell, _ := frame["sell"].(map[string]any)
	s.emit(Event{Type: EventSellAck, SellAck: &SellAckEvent{ContractID: fmt.Sprintf("%v", sell["contract_id"])}})
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
