// Package server exposes the orchestration engine over HTTP with SSE
// streaming for run progress.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/askflow-ai/askflow/internal/agent"
	"github.com/askflow-ai/askflow/internal/store"
	"github.com/askflow-ai/askflow/internal/stream"
)

type Server struct {
	store       *store.Store
	coordinator *agent.Coordinator
}

func New(st *store.Store, coordinator *agent.Coordinator) *Server {
	return &Server{store: st, coordinator: coordinator}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/chats", s.handleCreateChat)
	r.Post("/api/chats/{chatID}/ask", s.handleAsk)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		ScopeID  string `json:"scopeId"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ScopeID == "" {
		http.Error(w, "scopeId is required", http.StatusBadRequest)
		return
	}

	chat := store.Chat{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		ScopeID:  req.ScopeID,
		Provider: req.Provider,
	}
	if err := s.store.CreateChat(r.Context(), chat); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"chatId": chat.ID})
}

// handleAsk records the user question, creates the pending assistant
// message and streams the orchestration run as server-sent events.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req struct {
		Question string `json:"question"`
		UserID   string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userMsg := store.Message{
		ID:      uuid.NewString(),
		ChatID:  chatID,
		Role:    "human",
		Content: req.Question,
		Status:  store.StatusComplete,
	}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	assistantMsg := store.Message{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Role:   "ai",
		Status: store.StatusPending,
	}
	if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sink := stream.NewSSEWriter(w)
	if err := s.coordinator.ExecuteAgent(ctx, chatID, assistantMsg.ID, req.Question, req.UserID, sink); err != nil {
		// Setup error before any frame was written.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
