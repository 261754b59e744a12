package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"retail-assist/internal/conversation"
	"retail-assist/internal/llm"
	"retail-assist/internal/orchestrator"
	"retail-assist/internal/rag"
	"retail-assist/internal/routing"
)

type stubData struct{ answer string }

func (s *stubData) Answer(context.Context, string, routing.Category) (string, error) {
	return s.answer, nil
}

type stubRetriever struct{ snippets []string }

func (s *stubRetriever) Retrieve(context.Context, string, int) ([]string, error) {
	return s.snippets, nil
}

type stubGenerator struct {
	content string
	models  []string
}

func (s *stubGenerator) Generate(context.Context, []llm.Message) (llm.Response, error) {
	return llm.Response{Content: s.content}, nil
}

func (s *stubGenerator) ListModels(context.Context) ([]string, error) {
	return s.models, nil
}

type stubIndexer struct {
	docs []rag.Document
	err  error
}

func (s *stubIndexer) Index(_ context.Context, docs []rag.Document) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.docs = append(s.docs, docs...)
	return len(docs), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *conversation.Store, *stubIndexer) {
	t.Helper()

	store := conversation.NewStore(20)
	gen := &stubGenerator{
		content: "Returns are accepted within 7 days.",
		models:  []string{"gpt-4o", "gpt-4o-mini"},
	}
	orch := orchestrator.New(
		&stubData{answer: "Pepsi (can): 42 units in stock."},
		&stubRetriever{snippets: []string{"doc snippet"}},
		gen,
		store, nil, nil, orchestrator.Options{},
	)
	indexer := &stubIndexer{}
	handler := NewHandler(orch, store, indexer, gen, "=== PRODUCT_DB ===")

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, indexer
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestChatDataRoute(t *testing.T) {
	srv, store, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/chat", `{"question":"warehouse stock for pepsi","user_id":"u1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var body struct {
		Answer         string `json:"answer"`
		Route          string `json:"route"`
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, resp, &body)

	if body.Route != "sql" {
		t.Errorf("want route sql, got %q", body.Route)
	}
	if !strings.Contains(body.Answer, "42 units") {
		t.Errorf("unexpected answer: %q", body.Answer)
	}
	if body.ConversationID != "u1" {
		t.Errorf("want conversation_id u1, got %q", body.ConversationID)
	}
	if got := len(store.Snapshot("u1", 100)); got != 2 {
		t.Errorf("want 2 stored turns, got %d", got)
	}
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/chat", `{"question":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/chat", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for malformed body, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatEmptyHistoryKeepsSession(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.AppendExchange("u1", "earlier question", "earlier answer")

	resp := postJSON(t, srv.URL+"/chat", `{"question":"warehouse stock for pepsi","user_id":"u1","conversation_history":[]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// An empty history list means absent, not "replace with nothing".
	turns := store.Snapshot("u1", 100)
	if len(turns) != 4 {
		t.Fatalf("prior session was wiped: got %d turns, want 4", len(turns))
	}
	if turns[0].Content != "earlier question" {
		t.Errorf("unexpected first turn: %+v", turns[0])
	}
}

func TestChatNonEmptyHistoryReplacesSession(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.AppendExchange("u1", "stale question", "stale answer")

	body := `{"question":"warehouse stock for pepsi","user_id":"u1","conversation_history":[{"role":"user","content":"client question"},{"role":"assistant","content":"client answer"}]}`
	resp := postJSON(t, srv.URL+"/chat", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	turns := store.Snapshot("u1", 100)
	if len(turns) != 4 {
		t.Fatalf("want 4 turns (replayed pair + new exchange), got %d", len(turns))
	}
	if turns[0].Content != "client question" {
		t.Errorf("stored session not replaced: %+v", turns[0])
	}
}

func TestClearConversation(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.AppendExchange("u1", "q", "a")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/conversation/u1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if got := len(store.Snapshot("u1", 100)); got != 0 {
		t.Errorf("history not cleared, %d turns remain", got)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.AppendExchange("u1", "any cola left?", "Yes, 12 units.")

	resp, err := http.Get(srv.URL + "/conversation/u1/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var body struct {
		UserID  string `json:"user_id"`
		Count   int    `json:"count"`
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
	}
	decodeBody(t, resp, &body)

	if body.UserID != "u1" || body.Count != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.History[0].Role != "user" || body.History[1].Role != "assistant" {
		t.Errorf("unexpected roles: %+v", body.History)
	}
}

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/conversation/nobody/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 0 {
		t.Errorf("want empty history, got count=%d", body.Count)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/schema")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var body struct {
		Schema string `json:"schema"`
	}
	decodeBody(t, resp, &body)
	if !strings.Contains(body.Schema, "PRODUCT_DB") {
		t.Errorf("unexpected schema: %q", body.Schema)
	}
}

func TestModelsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var body struct {
		Models []string `json:"models"`
		Count  int      `json:"count"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 2 || len(body.Models) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Models[0] != "gpt-4o" {
		t.Errorf("unexpected models: %v", body.Models)
	}
}

func TestDebugRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/debug/route?question=" + "price+of+cola")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var body struct {
		Route    string `json:"route"`
		Category string `json:"category"`
	}
	decodeBody(t, resp, &body)
	if body.Route != "data" || body.Category != "price" {
		t.Errorf("unexpected decision: %+v", body)
	}

	resp, err = http.Get(srv.URL + "/debug/route")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("want 400 without question param, got %d", resp.StatusCode)
	}
}

func TestIngest(t *testing.T) {
	srv, _, indexer := newTestServer(t)

	resp := postJSON(t, srv.URL+"/ingest", `{"documents":[{"id":"d1","content":"return policy text"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var body struct {
		Indexed int `json:"indexed"`
	}
	decodeBody(t, resp, &body)
	if body.Indexed != 1 || len(indexer.docs) != 1 {
		t.Errorf("want 1 indexed document, got %+v / %d stored", body, len(indexer.docs))
	}

	resp = postJSON(t, srv.URL+"/ingest", `{"documents":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("want 400 for empty documents, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
