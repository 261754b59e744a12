package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-assist/internal/llm"
)

func newFakeChroma(t *testing.T, resolveCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(resolveCalls, 1)
		var body struct {
			Name        string `json:"name"`
			GetOrCreate bool   `json:"get_or_create"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.GetOrCreate)
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
	})
	mux.HandleFunc("/api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QueryTexts []string `json:"query_texts"`
			NResults   int      `json:"n_results"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body.NResults)
		json.NewEncoder(w).Encode(map[string][][]string{
			"documents": {{"snippet one", "snippet two"}},
		})
	})
	mux.HandleFunc("/api/v1/collections/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs       []string `json:"ids"`
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.IDs, len(body.Documents))
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRetrieve(t *testing.T) {
	var resolveCalls int32
	srv := newFakeChroma(t, &resolveCalls)
	c := NewChromaClient(srv.URL, "retail-docs")

	snippets, err := c.Retrieve(context.Background(), "refund policy", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"snippet one", "snippet two"}, snippets)

	// The collection id is cached after the first call.
	_, err = c.Retrieve(context.Background(), "refund policy", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&resolveCalls))
}

func TestIndexAssignsMissingIDs(t *testing.T) {
	var resolveCalls int32
	srv := newFakeChroma(t, &resolveCalls)
	c := NewChromaClient(srv.URL, "retail-docs")

	n, err := c.Index(context.Background(), []Document{
		{ID: "d1", Content: "return policy text"},
		{Content: "shipping policy text"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndexEmptyIsNoop(t *testing.T) {
	c := NewChromaClient("http://unused.invalid", "retail-docs")
	n, err := c.Index(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOverloadedIndexIsTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := NewChromaClient(srv.URL, "retail-docs")

	_, err := c.Retrieve(context.Background(), "anything", 3)
	require.Error(t, err)

	var backendErr *llm.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, llm.TagUnavailable, backendErr.Tag)
}

func TestRateLimitedIndexIsTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c := NewChromaClient(srv.URL, "retail-docs")

	_, err := c.Retrieve(context.Background(), "anything", 3)
	require.Error(t, err)

	var backendErr *llm.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, llm.TagResourceExhausted, backendErr.Tag)
}
