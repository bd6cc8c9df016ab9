// Package llm calls OpenAI-family chat completion endpoints and returns either the
// raw completion or a value decoded into a caller-supplied schema type.
package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Message roles.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one role/content pair of a conversation. Messages are sent in order
// and are not validated.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the provider's raw chat completion response.
type Completion = openai.ChatCompletionResponse

// ChatClient is a client handle for one backend. *openai.Client implements it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// TextCompleter is the text-completion capability.
type TextCompleter interface {
	// GetChatCompletion returns the provider's raw completion for messages.
	GetChatCompletion(ctx context.Context, messages []Message, opts ...CallOption) (Completion, error)

	// CompletionToString extracts the text of the primary choice.
	CompletionToString(completion Completion) (string, error)

	// GetParsedCompletion decodes a schema-constrained completion into out,
	// which must be a non-nil pointer. The schema is derived from out's type.
	GetParsedCompletion(ctx context.Context, messages []Message, out any, opts ...CallOption) error
}

// Classifier is a TextCompleter that can read a class label out of a completion.
type Classifier interface {
	TextCompleter

	// ExtractLabel returns the label carried by completion.
	ExtractLabel(completion Completion) (string, error)
}

// Embedder is the embedding capability.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Tunable is implemented by components that can be fitted to labelled examples
// and reconfigured at runtime.
type Tunable interface {
	Tune(ctx context.Context, X []string, y []string) error
	SetHyperparameters(params map[string]any) error
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
