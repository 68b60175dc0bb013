package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/engine"
	"github.com/quantedge/derivengine/pkg/types"
)

// fakeEngine is a minimal EngineView/CommandHandler stand-in so the HTTP
// surface can be tested without a real broker session.
type fakeEngine struct {
	state      types.EngineState
	violations []engine.RiskViolation
	metricsReg *engine.Metrics

	started, stopped, cleared, batchCancelled, emergencySL bool
	closedID                                               string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{state: types.EngineStatePassiveMonitoring, metricsReg: &engine.Metrics{}}
}

func (f *fakeEngine) StartTrading()        { f.started = true }
func (f *fakeEngine) StopTrading()         { f.stopped = true }
func (f *fakeEngine) ClearConsole()        { f.cleared = true }
func (f *fakeEngine) BatchCancelOrders()   { f.batchCancelled = true }
func (f *fakeEngine) EmergencySL()         { f.emergencySL = true }
func (f *fakeEngine) CloseTrade(id string) { f.closedID = id }

func (f *fakeEngine) State() types.EngineState        { return f.state }
func (f *fakeEngine) Metrics() types.SessionMetrics    { return types.SessionMetrics{} }
func (f *fakeEngine) GetViolations(limit int) []engine.RiskViolation { return f.violations }
func (f *fakeEngine) PrometheusRegistry() *engine.Metrics            { return f.metricsReg }

type fakeConfigLoader struct {
	cfg types.Configuration
}

func (f *fakeConfigLoader) Current() types.Configuration { return f.cfg }

func newTestServer(t *testing.T) (*Server, *fakeEngine, *fakeConfigLoader) {
	t.Helper()
	fe := newFakeEngine()
	fc := &fakeConfigLoader{cfg: types.Configuration{APIToken: "tok", AppID: "1089"}}
	s := NewServer(zap.NewNop(), types.ServerConfig{Host: "127.0.0.1", Port: 0}, fe, fc, func(types.Configuration) {})
	return s, fe, fc
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestHandleStatusReportsEngineState(t *testing.T) {
	s, fe, _ := newTestServer(t)
	fe.state = types.EngineStateTrading
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(types.EngineStateTrading), body["state"])
}

func TestHandleGetConfigReturnsCurrent(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/config", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	var cfg types.Configuration
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	assert.Equal(t, "tok", cfg.APIToken)
}

func TestHandlePutConfigRejectsInvalid(t *testing.T) {
	s, _, _ := newTestServer(t)
	body, _ := json.Marshal(types.Configuration{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/config", bytes.NewReader(body))
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 422, rec.Code)
}

func TestHandlePutConfigAppliesValid(t *testing.T) {
	s, _, _ := newTestServer(t)
	var applied types.Configuration
	s.applyConfig = func(cfg types.Configuration) { applied = cfg }

	valid := types.Configuration{
		APIToken: "tok", AppID: "1089", Symbols: []string{"R_100"},
		ActiveStrategy: types.Strategy1, ContractType: types.ContractTypeRiseFall,
		EntryType: types.EntryTypeTick, BalanceValue: 10,
		MaxDailyLossPct: 10, MaxDailyProfitPct: 20, BinaryFailsafePct: 0.01,
	}
	body, _ := json.Marshal(valid)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/config", bytes.NewReader(body))
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 202, rec.Code)
	assert.Equal(t, "R_100", applied.Symbols[0])
}

func TestHandleGetViolationsReturnsRing(t *testing.T) {
	s, fe, _ := newTestServer(t)
	fe.violations = []engine.RiskViolation{{Symbol: "R_100", Reason: "max daily loss"}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/violations", nil)
	s.router.ServeHTTP(rec, req)

	var got []engine.RiskViolation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "R_100", got[0].Symbol)
}

func TestHandleCommandDispatchesToEngine(t *testing.T) {
	s, fe, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/command/start", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 202, rec.Code)
	assert.True(t, fe.started)
}

func TestHandleCommandCloseTradeUsesBodyContractID(t *testing.T) {
	s, fe, _ := newTestServer(t)
	body, _ := json.Marshal(CommandPayload{ContractID: "abc-123"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/command/close_trade", bytes.NewReader(body))
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", fe.closedID)
}

func TestWebSocketRoundTripReceivesBroadcastEvent(t *testing.T) {
	s, _, _ := newTestServer(t)
	go s.hub.Run()

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	wsURL := "ws" + ts.URL[4:] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	s.Emit(engine.PushEvent{Type: engine.EventBotStatus, Data: engine.BotStatus{Running: true, State: types.EngineStateTrading}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeBotStatus, msg.Type)
}

func TestServerStopWithoutStartIsNoop(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
