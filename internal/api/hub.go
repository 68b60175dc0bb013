// Package api is the thin external HTTP + push-socket surface spec.md §1
// treats as an outside collaborator: a status/config/command HTTP API and a
// WebSocket hub that republishes the Engine Coordinator's push events.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/engine"
)

// MessageType mirrors engine.PushEventType plus the client->server control
// messages the hub itself understands.
type MessageType string

const (
	MsgTypeBotStatus         MessageType = "bot_status"
	MsgTypeAccountUpdate     MessageType = "account_update"
	MsgTypeTradesUpdate      MessageType = "trades_update"
	MsgTypeScreenerUpdate    MessageType = "screener_update"
	MsgTypeMultipliersUpdate MessageType = "multipliers_update"
	MsgTypePositionUpdate    MessageType = "position_update"
	MsgTypeConsoleLog        MessageType = "console_log"
	MsgTypeSuccess           MessageType = "success"
	MsgTypeError             MessageType = "error"
	MsgTypeHeartbeat         MessageType = "heartbeat"

	MsgTypeSubscribe   MessageType = "subscribe"
	MsgTypeUnsubscribe MessageType = "unsubscribe"
	MsgTypeCommand     MessageType = "command"
)

// WSMessage is the wire shape for every push-socket frame in both
// directions. ID correlates a server-originated frame across reconnects and
// client-side dedup; inbound client frames leave it empty.
type WSMessage struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// CommandPayload is the client->server body of a MsgTypeCommand frame
// (spec.md §6 Operator Commands).
type CommandPayload struct {
	Name       string `json:"name"`
	ContractID string `json:"contractId,omitempty"`
}

// CommandHandler is satisfied by *engine.Engine — the hub only needs the
// six operator-command entry points, not the whole engine surface.
type CommandHandler interface {
	StartTrading()
	StopTrading()
	ClearConsole()
	BatchCancelOrders()
	EmergencySL()
	CloseTrade(contractID string)
}

// Client is one WebSocket connection.
type Client struct {
	id            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool
	mu            sync.RWMutex
}

// Hub fans engine push events out to subscribed clients and routes inbound
// operator commands back into the engine.
type Hub struct {
	logger   *zap.Logger
	commands CommandHandler

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	channels   map[string]map[*Client]bool
	mu         sync.RWMutex
}

// NewHub constructs a Hub. Run must be started in its own goroutine before
// any client connects.
func NewHub(logger *zap.Logger, commands CommandHandler) *Hub {
	return &Hub{
		logger:     logger.Named("hub"),
		commands:   commands,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		channels:   make(map[string]map[*Client]bool),
	}
}

// Run is the hub's single-goroutine event loop: register/unregister/
// broadcast/heartbeat, serialized the same way the teacher's api.Hub does.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for channel := range client.subscriptions {
					if clients, ok := h.channels[channel]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.channels, channel)
						}
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("id", client.id))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) sendHeartbeat() {
	data, _ := json.Marshal(WSMessage{ID: uuid.New().String(), Type: MsgTypeHeartbeat, Timestamp: time.Now().UnixMilli()})
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.RUnlock()
}

// Subscribe/Unsubscribe manage per-channel fan-out; channel names are the
// push event type strings (bot_status, screener_update, ...).
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true

	client.mu.Lock()
	client.subscriptions[channel] = true
	client.mu.Unlock()
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
	client.mu.Lock()
	delete(client.subscriptions, channel)
	client.mu.Unlock()
}

func (h *Hub) publishToChannel(channel string, msgType MessageType, data any) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshal push payload failed", zap.Error(err))
		return
	}
	msgBytes, err := json.Marshal(WSMessage{ID: uuid.New().String(), Type: msgType, Channel: channel, Data: dataBytes, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Error("marshal push message failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.channels[channel]; ok {
		for client := range clients {
			select {
			case client.send <- msgBytes:
			default:
			}
		}
	}
}

// Emit adapts engine.EmitFunc: every push event is both a named channel
// (so clients can subscribe narrowly) and a broadcast-to-all fallback for
// clients that never subscribed (spec.md's presentation layer is out of
// scope, so the wire format favors the simplest possible consumer).
func (h *Hub) Emit(ev engine.PushEvent) {
	msgType := MessageType(ev.Type)
	h.publishToChannel(string(ev.Type), msgType, ev.Data)

	dataBytes, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	msgBytes, err := json.Marshal(WSMessage{ID: uuid.New().String(), Type: msgType, Data: dataBytes, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msgBytes:
	default:
		h.logger.Warn("broadcast channel full, dropping push event", zap.String("type", string(ev.Type)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient wraps conn as a hub-managed client and registers it.
func (h *Hub) NewClient(conn *websocket.Conn) *Client {
	c := &Client{
		id:            conn.RemoteAddr().String(),
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}
	h.register <- c
	return c
}

// ReadPump pumps inbound frames (subscribe/unsubscribe/command) into the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgTypeSubscribe:
			c.hub.Subscribe(c, msg.Channel)
		case MsgTypeUnsubscribe:
			c.hub.Unsubscribe(c, msg.Channel)
		case MsgTypeCommand:
			c.handleCommand(msg)
		}
	}
}

// WritePump pumps outbound frames, batching whatever queued up since the
// last write (teacher's api/websocket.go pattern).
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleCommand dispatches an inbound operator command (spec.md §6) — the
// teacher's equivalent is a TODO stub; this is load-bearing here since the
// push socket is the primary operator control surface alongside the HTTP
// command endpoint.
func (c *Client) handleCommand(msg WSMessage) {
	var payload CommandPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.hub.logger.Warn("invalid command payload", zap.Error(err))
		return
	}
	dispatchCommand(c.hub.commands, payload)
}

func dispatchCommand(h CommandHandler, payload CommandPayload) {
	switch payload.Name {
	case "start":
		h.StartTrading()
	case "stop":
		h.StopTrading()
	case "clear_console":
		h.ClearConsole()
	case "batch_cancel_orders":
		h.BatchCancelOrders()
	case "emergency_sl":
		h.EmergencySL()
	case "close_trade":
		h.CloseTrade(payload.ContractID)
	}
}
