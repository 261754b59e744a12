// Package sqlagent answers data questions by prompting a generation backend
// with the relational schema description. The schema preamble is configuration
// data loaded from disk, not orchestration logic.
package sqlagent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"retail-assist/internal/llm"
	"retail-assist/internal/routing"
)

const dataRules = `You are a friendly assistant for a retail system. Answer naturally, as if talking to a customer.

Strict data rules:
1. Use ONLY data returned by SQL queries against the schema below.
2. NEVER add information, inference, or outside knowledge to query results.
3. If the query returns nothing, say the information was not found in the system.
4. When the query has data, answer with the exact figures. Do not round or estimate.
5. Only use SELECT with LIMIT.

Always state units in answers: "Product (unit): price", quantities as "150 units",
amounts with thousands separators, stock as concrete counts.`

type Agent struct {
	client         llm.Client
	schemaPreamble string
}

// New builds an agent over the given generation client. schemaPath points at
// the table/column description preamble.
func New(client llm.Client, schemaPath string) (*Agent, error) {
	preamble, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema preamble: %w", err)
	}
	return &Agent{
		client:         client,
		schemaPreamble: strings.TrimSpace(string(preamble)),
	}, nil
}

// SchemaPreamble exposes the loaded schema description for operator endpoints.
func (a *Agent) SchemaPreamble() string {
	return a.schemaPreamble
}

// Answer resolves a data question annotated with its category hint. The hint
// narrows the backend's search space; it does not change the contract.
func (a *Agent) Answer(ctx context.Context, question string, category routing.Category) (string, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: dataRules + "\n\n" + a.schemaPreamble},
		{Role: llm.RoleUser, Content: fmt.Sprintf("[category: %s]\n%s", category, question)},
	}
	resp, err := a.client.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("data query failed: %w", err)
	}
	return resp.Content, nil
}
