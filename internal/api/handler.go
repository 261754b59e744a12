// Package api provides the HTTP handlers for the assistant.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"retail-assist/internal/conversation"
	"retail-assist/internal/llm"
	"retail-assist/internal/orchestrator"
	"retail-assist/internal/rag"
	"retail-assist/internal/routing"
)

// Handler wires the orchestrator and its collaborators to HTTP routes.
type Handler struct {
	orch       *orchestrator.Orchestrator
	store      *conversation.Store
	indexer    rag.Indexer
	generator  llm.Client
	schemaInfo string
}

func NewHandler(orch *orchestrator.Orchestrator, store *conversation.Store, indexer rag.Indexer, generator llm.Client, schemaInfo string) *Handler {
	return &Handler{
		orch:       orch,
		store:      store,
		indexer:    indexer,
		generator:  generator,
		schemaInfo: schemaInfo,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Delete("/conversation/{userID}", h.handleClearConversation)
	r.Get("/conversation/{userID}/history", h.handleHistory)
	r.Get("/schema", h.handleSchema)
	r.Get("/models", h.handleModels)
	r.Get("/debug/route", h.handleDebugRoute)
	r.Post("/ingest", h.handleIngest)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type chatRequest struct {
	Question            string        `json:"question"`
	UserID              string        `json:"user_id,omitempty"`
	TopK                int           `json:"top_k,omitempty"`
	ConversationHistory []historyTurn `json:"conversation_history,omitempty"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Answer         string `json:"answer"`
	Route          string `json:"route"`
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error,omitempty"`
	RetryAfter     string `json:"retry_after,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}

	oreq := orchestrator.Request{
		Question: req.Question,
		UserID:   req.UserID,
		TopK:     req.TopK,
	}
	if len(req.ConversationHistory) > 0 {
		turns := make([]conversation.Turn, 0, len(req.ConversationHistory))
		for _, t := range req.ConversationHistory {
			turns = append(turns, conversation.Turn{Role: t.Role, Content: t.Content})
		}
		oreq.History = turns
	}

	result, err := h.orch.Handle(r.Context(), oreq)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		Answer:         result.Answer,
		Route:          result.Route,
		ConversationID: result.ConversationID,
		Error:          result.Error,
		RetryAfter:     result.RetryAfter,
	})
}

func (h *Handler) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	h.store.Clear(userID)
	JSON(w, http.StatusOK, map[string]string{
		"message": "conversation history cleared for user " + userID,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	turns := h.store.Snapshot(userID, 1<<30)

	history := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		history = append(history, historyTurn{Role: t.Role, Content: t.Content})
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"history": history,
		"count":   len(history),
	})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"schema": h.schemaInfo,
	})
}

// handleModels lists the models the configured provider offers.
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.generator.(llm.ModelLister)
	if !ok {
		Error(w, http.StatusNotImplemented, "model listing is not supported by this provider")
		return
	}
	models, err := lister.ListModels(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"count":  len(models),
	})
}

// handleDebugRoute exposes the classifier decision for a question so operators
// can see why it went to a given backend.
func (h *Handler) handleDebugRoute(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" {
		Error(w, http.StatusBadRequest, "question query parameter is required")
		return
	}
	decision := routing.Classify(question)
	JSON(w, http.StatusOK, map[string]string{
		"question": question,
		"route":    decision.Route.String(),
		"category": string(decision.Category),
	})
}

type ingestRequest struct {
	Documents []rag.Document `json:"documents"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		Error(w, http.StatusBadRequest, "documents are required")
		return
	}

	count, err := h.indexer.Index(r.Context(), req.Documents)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]int{"indexed": count})
}
