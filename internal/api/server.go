package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/internal/config"
	"github.com/quantedge/derivengine/internal/engine"
	"github.com/quantedge/derivengine/pkg/types"
)

// EngineView is the slice of *engine.Engine the HTTP surface depends on —
// kept narrow so tests can fake it without standing up a real broker
// session.
type EngineView interface {
	CommandHandler
	State() types.EngineState
	Metrics() types.SessionMetrics
	GetViolations(limit int) []engine.RiskViolation
	PrometheusRegistry() *engine.Metrics
}

// ConfigView is the slice of *config.Loader the HTTP surface depends on.
type ConfigView interface {
	Current() types.Configuration
}

// Server is the engine's external HTTP + push-socket surface (spec.md §1,
// §6) — it never mutates engine state directly, only through EngineView's
// command methods and the injected applyConfig hook.
type Server struct {
	mu sync.RWMutex

	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	hub         *Hub
	engine      EngineView
	cfgLoader   ConfigView
	applyConfig func(types.Configuration)
}

// NewServer wires routes, the CORS handler, and the WebSocket hub exactly
// the way the teacher's api.NewServer does, against the engine/config pair
// instead of a backtester.Engine/data.Store pair.
func NewServer(logger *zap.Logger, cfg types.ServerConfig, eng EngineView, cfgLoader ConfigView, applyConfig func(types.Configuration)) *Server {
	s := &Server{
		logger:      logger.Named("api"),
		config:      cfg,
		router:      mux.NewRouter(),
		hub:         NewHub(logger, eng),
		engine:      eng,
		cfgLoader:   cfgLoader,
		applyConfig: applyConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	v1.HandleFunc("/config", s.handlePutConfig).Methods(http.MethodPut)
	v1.HandleFunc("/violations", s.handleGetViolations).Methods(http.MethodGet)
	v1.HandleFunc("/command/{name}", s.handleCommand).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.handleWebSocket)

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.engine.PrometheusRegistry().Registry, promhttp.HandlerOpts{}))
	}
}

// Start launches the hub's event loop and blocks in ListenAndServe, the
// way the teacher's Start does.
func (s *Server) Start() error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("api server starting", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP listener down, draining in-flight requests until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":   s.engine.State(),
		"metrics": s.engine.Metrics(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfgLoader.Current())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg types.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid config body: "+err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.applyConfig(cfg)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "applied"})
}

func (s *Server) handleGetViolations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.GetViolations(0))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	payload := CommandPayload{Name: vars["name"]}
	if r.ContentLength != 0 {
		var body CommandPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.ContractID != "" {
			payload.ContractID = body.ContractID
		}
	}
	requestID := uuid.New().String()
	dispatchCommand(s.engine, payload)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched", "requestId": requestID})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := s.hub.NewClient(conn)
	go client.WritePump()
	go client.ReadPump()
}

// Emit satisfies engine.EmitFunc's signature so the Server can be handed
// to engine.New directly: engine.New(logger, brokerCfg, server.Emit).
func (s *Server) Emit(ev engine.PushEvent) {
	s.hub.Emit(ev)
}
