package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openagora/agora/pkg/debate"
)

const (
	minAgents = 2
	maxAgents = 6
)

func (s *Server) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var req CreateDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if len(req.Agents) < minAgents || len(req.Agents) > maxAgents {
		writeError(w, http.StatusBadRequest, "a debate needs between 2 and 6 agents")
		return
	}

	d := &debate.Debate{
		Topic:       req.Topic,
		Description: req.Description,
		MaxTurns:    req.MaxTurns,
	}
	for _, a := range req.Agents {
		if strings.TrimSpace(a.Name) == "" || a.Provider == "" || a.Model == "" {
			writeError(w, http.StatusBadRequest, "agent name, provider, and model are required")
			return
		}
		d.Agents = append(d.Agents, debate.Agent{
			Name:        strings.TrimSpace(a.Name),
			Role:        a.Role,
			Provider:    a.Provider,
			Model:       a.Model,
			Temperature: a.Temperature,
		})
	}

	created, err := s.store.CreateDebate(r.Context(), d)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info().Str("debate_id", created.ID).Str("topic", created.Topic).Msg("Debate created")

	resp := map[string]interface{}{"debate": created}
	if s.auth.Enabled() {
		resp["ws_token"] = s.auth.Sign(created.ID)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListDebates(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	debates, err := s.store.ListDebates(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list debates")
		return
	}
	if debates == nil {
		debates = []debate.Debate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"debates": debates})
}

func (s *Server) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDebate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDebate(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetDebate(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 200)

	messages, err := s.store.Messages(r.Context(), id, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if messages == nil {
		messages = []debate.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleResumeDebate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.controller.Start(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(debate.StatusActive)})
	case errors.Is(err, debate.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, debate.ErrDebateCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, debate.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStopDebate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.controller.Pause(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(debate.StatusPaused)})
	case errors.Is(err, debate.ErrNoActiveRun):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, debate.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
