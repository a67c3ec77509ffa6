// Package api exposes Quill over HTTP: the agent entrypoint, session
// management, reminder listing, and a WebSocket event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/agent"
	"github.com/quillhq/quill/internal/buildinfo"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/events"
	"github.com/quillhq/quill/internal/llm"
	"github.com/quillhq/quill/internal/memory"
	"github.com/quillhq/quill/internal/prompts"
	"github.com/quillhq/quill/internal/reminder"
	"github.com/quillhq/quill/internal/tools"
)

// Server is the HTTP front end.
type Server struct {
	logger    *slog.Logger
	loop      *agent.Loop
	store     *memory.Store
	registry  *tools.Registry
	reminders *reminder.Service
	bus       *events.Bus
	llm       llm.Client
	mux       *http.ServeMux
}

// NewServer wires the HTTP handlers. bus may be nil, which disables the
// event stream.
func NewServer(logger *slog.Logger, loop *agent.Loop, store *memory.Store, registry *tools.Registry,
	reminders *reminder.Service, bus *events.Bus, client llm.Client) *Server {
	s := &Server{
		logger:    logger,
		loop:      loop,
		store:     store,
		registry:  registry,
		reminders: reminders,
		bus:       bus,
		llm:       client,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /agent/run", s.handleAgentRun)
	s.mux.HandleFunc("POST /name-chat", s.handleNameChat)
	s.mux.HandleFunc("GET /tools", s.handleTools)

	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("PATCH /sessions/{id}", s.handleRenameSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /sessions/{id}/history", s.handleHistory)

	s.mux.HandleFunc("GET /reminders", s.handleListReminders)
	s.mux.HandleFunc("GET /events", s.handleEvents)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// Start runs the server until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context, cfg config.ListenConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().Round(time.Second).String(),
		"memory":  s.loop.MemoryStats(),
	}
	if s.bus != nil {
		payload["event_subscribers"] = s.bus.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Prompt    string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resp, err := s.loop.Run(r.Context(), req.SessionID, req.Prompt)
	if err != nil {
		s.logger.Error("agent run failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "agent run failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNameChat asks the model for a short session title and applies
// it. The fallback title is the truncated first message, so a backend
// failure still names the chat.
func (s *Server) handleNameChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	name, err := s.llm.Generate(r.Context(), prompts.ChatName(req.Message), false)
	if err != nil {
		s.logger.Warn("chat naming failed, falling back to message prefix", "error", err)
		name = req.Message
	}
	name = strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `"`))
	if len(name) > 40 {
		name = name[:40]
	}

	if err := s.store.RenameSession(req.SessionID, name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "name": name})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	if sessions == nil {
		sessions = []*memory.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		req.Name = "New Chat"
	}

	sess, err := s.store.CreateSession("", req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id := r.PathValue("id")
	if err := s.store.RenameSession(id, req.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "name": req.Name})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteSession(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := s.store.GetHistory(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load history failed")
		return
	}
	if history == nil {
		history = []memory.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": history})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	pending, err := s.reminders.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list reminders failed")
		return
	}
	if pending == nil {
		pending = []*reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": pending})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
