package llm

import "context"

type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// ModelLister is implemented by clients that can enumerate the models their
// provider offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
