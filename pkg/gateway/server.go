package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/openagora/agora/internal/observability"
	"github.com/openagora/agora/pkg/debate"
	"github.com/rs/zerolog"
)

// DebateStore is the persistence surface the gateway needs: the core
// Store contract plus the CRUD operations the REST handlers expose.
type DebateStore interface {
	debate.Store
	CreateDebate(ctx context.Context, d *debate.Debate) (*debate.Debate, error)
	ListDebates(ctx context.Context, offset, limit int) ([]debate.Debate, error)
	DeleteDebate(ctx context.Context, id string) error
}

// Server is the debate gateway: websocket streams per debate plus the
// REST management surface.
type Server struct {
	port           int
	server         *http.Server
	upgrader       websocket.Upgrader
	hub            *Hub
	controller     *debate.Controller
	store          DebateStore
	auth           *TokenAuth
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// Config holds server configuration.
type Config struct {
	Port         int
	SharedSecret string
	Hub          *Hub
	Controller   *debate.Controller
	Store        DebateStore
	Logger       zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	return &Server{
		port:       cfg.Port,
		hub:        cfg.Hub,
		controller: cfg.Controller,
		store:      cfg.Store,
		auth:       NewTokenAuth(cfg.SharedSecret),
		logger:     cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}, nil
}

// routes builds the gateway's request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/debates/{id}", s.handleWebSocket)
	mux.HandleFunc("POST /debates", s.handleCreateDebate)
	mux.HandleFunc("GET /debates", s.handleListDebates)
	mux.HandleFunc("GET /debates/{id}", s.handleGetDebate)
	mux.HandleFunc("DELETE /debates/{id}", s.handleDeleteDebate)
	mux.HandleFunc("GET /debates/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /debates/{id}/resume", s.handleResumeDebate)
	mux.HandleFunc("POST /debates/{id}/stop", s.handleStopDebate)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start starts the gateway server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.routes(),
	}

	s.logger.Info().Int("port", s.port).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the gateway server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// handleWebSocket upgrades an observer connection onto a debate stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	debateID := r.PathValue("id")
	if _, err := s.store.GetDebate(r.Context(), debateID); err != nil {
		if err == debate.ErrNotFound {
			http.Error(w, "debate not found", http.StatusNotFound)
		} else {
			http.Error(w, "failed to load debate", http.StatusInternalServerError)
		}
		return
	}

	if !s.auth.Verify(debateID, r.URL.Query().Get("token")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		DebateID:    debateID,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
		conn:        conn,
	}

	s.hub.Join(client)
	s.logger.Info().
		Str("clientId", clientID).
		Str("debate_id", debateID).
		Str("ip", r.RemoteAddr).
		Msg("Observer connected")

	if err := client.Send(debate.NewConnected(debateID)); err != nil {
		s.logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to send welcome event")
		client.Close()
		s.hub.Leave(client)
		return
	}

	go s.readLoop(client)
}

// readLoop consumes commands from one observer until it disconnects.
func (s *Server) readLoop(client *Client) {
	defer func() {
		client.Close()
		s.hub.Leave(client)
		s.logger.Info().Str("clientId", client.ID).Msg("Observer disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}
		s.handleCommand(client, message)
	}
}
