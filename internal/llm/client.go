package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client performs one synchronous completion: a filled prompt goes out, the
// generated text comes back verbatim. Transport failures propagate to the
// caller; there is no retry layer.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
