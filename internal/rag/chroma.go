// Package rag retrieves document snippets from a Chroma-compatible vector
// index over its REST API.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"retail-assist/internal/llm"
)

// Retriever returns the top-k snippets for a question. An empty result is not
// an error; only genuine backend failures are.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]string, error)
}

// Indexer adds documents to the index.
type Indexer interface {
	Index(ctx context.Context, docs []Document) (int, error)
}

type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChromaClient is a thin REST client for a Chroma server. The collection is
// resolved lazily and cached.
type ChromaClient struct {
	baseURL    string
	collection string
	httpClient *http.Client

	mu           sync.Mutex
	collectionID string
}

func NewChromaClient(baseURL, collection string) *ChromaClient {
	return &ChromaClient{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ChromaClient) Retrieve(ctx context.Context, question string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 4
	}
	id, err := c.resolveCollection(ctx)
	if err != nil {
		return nil, err
	}

	var out struct {
		Documents [][]string `json:"documents"`
	}
	body := map[string]any{
		"query_texts": []string{question},
		"n_results":   topK,
	}
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", id), body, &out); err != nil {
		return nil, fmt.Errorf("retrieval query failed: %w", err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}
	return out.Documents[0], nil
}

func (c *ChromaClient) Index(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	id, err := c.resolveCollection(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(docs))
	contents := make([]string, 0, len(docs))
	metadatas := make([]map[string]string, 0, len(docs))
	for i, d := range docs {
		docID := d.ID
		if docID == "" {
			docID = fmt.Sprintf("doc-%d-%d", time.Now().UnixNano(), i)
		}
		ids = append(ids, docID)
		contents = append(contents, d.Content)
		md := d.Metadata
		if md == nil {
			md = map[string]string{}
		}
		metadatas = append(metadatas, md)
	}

	body := map[string]any{
		"ids":       ids,
		"documents": contents,
		"metadatas": metadatas,
	}
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/add", id), body, nil); err != nil {
		return 0, fmt.Errorf("index add failed: %w", err)
	}
	return len(docs), nil
}

func (c *ChromaClient) resolveCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}
	if err := c.post(ctx, "/api/v1/collections", body, &out); err != nil {
		return "", fmt.Errorf("failed to resolve collection %q: %w", c.collection, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("collection %q resolved to empty id", c.collection)
	}
	c.collectionID = out.ID
	return c.collectionID, nil
}

func (c *ChromaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return chromaError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// chromaError tags capacity failures so classification treats an overloaded
// index the same as an overloaded model.
func chromaError(status int, body []byte) error {
	msg := fmt.Sprintf("chroma returned %d: %s", status, truncate(string(body), 200))
	switch status {
	case http.StatusTooManyRequests:
		return &llm.BackendError{Tag: llm.TagResourceExhausted, Message: msg}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &llm.BackendError{Tag: llm.TagUnavailable, Message: msg}
	default:
		return &llm.BackendError{Tag: llm.TagAPIError, Message: msg}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
