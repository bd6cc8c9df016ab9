package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dan-solli/gptkit/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the embedding model used when none is set.
const DefaultModel = "text-embedding-3-small"

// ErrBadIndex means the provider returned a vector for an input that was not sent,
// or left an input without a vector.
var ErrBadIndex = errors.New("embedding index out of range")

// Client implements EmbeddingClient and llm.Embedder on top of a Completer, sharing
// its backend resolution, retry policy, rate limit, metrics and tracing.
type Client struct {
	completer *llm.Completer
	key       string
	org       string
	backend   llm.Backend
	model     string
	logger    *slog.Logger
}

var (
	_ EmbeddingClient = (*Client)(nil)
	_ llm.Embedder    = (*Client)(nil)
)

// NewClient creates an embedding client that authenticates with key and org.
func NewClient(completer *llm.Completer, key, org string) *Client {
	return &Client{
		completer: completer,
		key:       key,
		org:       org,
		backend:   llm.BackendOpenAI,
		model:     DefaultModel,
	}
}

// WithModel sets the embedding model. An empty model keeps the current one.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// WithBackend sets the backend used for every call.
func (c *Client) WithBackend(backend llm.Backend) *Client {
	c.backend = backend
	return c
}

// WithLogger sets the logger. A nil logger disables logging.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Model returns the embedding model in use.
func (c *Client) Model() string {
	return c.model
}

// Embed generates embeddings for multiple texts, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	opts := []llm.CallOption{llm.WithBackend(c.backend), llm.WithModel(c.model)}
	vectors, err := llm.Call(ctx, c.completer, llm.OperationEmbeddings, c.key, c.org, opts,
		func(ctx context.Context, client llm.ChatClient, model string) ([][]float32, error) {
			resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(model),
			})
			if err != nil {
				return nil, err
			}
			return orderByIndex(resp.Data, len(texts))
		})
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Debug("embeddings generated",
			"backend", string(c.backend),
			"model", c.model,
			"count", len(vectors),
			"dimensions", len(vectors[0]))
	}
	return vectors, nil
}

// EmbedOne generates an embedding for a single text
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func orderByIndex(data []openai.Embedding, n int) ([][]float32, error) {
	vectors := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("%w: %d (sent %d inputs)", ErrBadIndex, d.Index, n)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: no vector for input %d", ErrBadIndex, i)
		}
	}
	return vectors, nil
}
