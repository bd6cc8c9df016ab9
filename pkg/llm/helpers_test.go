package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dan-solli/gptkit/pkg/trace"
	openai "github.com/sashabaranov/go-openai"
)

// stubResult is one scripted outcome of CreateChatCompletion.
type stubResult struct {
	resp openai.ChatCompletionResponse
	err  error
}

// stubClient is a ChatClient that replays scripted results and records requests.
// The last result repeats once the script is exhausted.
type stubClient struct {
	mu       sync.Mutex
	results  []stubResult
	requests []openai.ChatCompletionRequest
}

func (s *stubClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.results) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("stub: no scripted result")
	}
	i := len(s.requests) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i].resp, s.results[i].err
}

func (s *stubClient) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return openai.EmbeddingResponse{}, errors.New("stub: embeddings not scripted")
}

func (s *stubClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// resolverSpy counts credential function invocations.
type resolverSpy struct {
	mu         sync.Mutex
	standard   int
	enterprise int
	client     ChatClient
}

func (r *resolverSpy) resolver() Resolver {
	return Resolver{
		Standard: func(key, org string) (ChatClient, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.standard++
			return r.client, nil
		},
		Enterprise: func(key, org string) (ChatClient, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.enterprise++
			return r.client, nil
		},
	}
}

func newStubCompleter(cfg Config, client *stubClient) (*Completer, *resolverSpy) {
	spy := &resolverSpy{client: client}
	return NewCompleter(cfg).WithResolver(spy.resolver()), spy
}

func completionWithContent(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: RoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(completionWithContent(content))
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "test_error"},
	})
}

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *captureHandler) messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

// recordingExporter keeps exported trace records in memory.
type recordingExporter struct {
	mu      sync.Mutex
	records []trace.TraceRecord
}

func (e *recordingExporter) Export(_ context.Context, r *trace.TraceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, *r)
	return nil
}

func (e *recordingExporter) Close() error { return nil }

// recordingCollector keeps metrics calls in memory.
type recordingCollector struct {
	mu       sync.Mutex
	requests []string
	attempts []bool
	errors   []string
}

func (c *recordingCollector) RecordRequest(_ context.Context, operation, backend, status string, _ int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, operation+"/"+backend+"/"+status)
}

func (c *recordingCollector) RecordAttempt(_ context.Context, _, _ string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, ok)
}

func (c *recordingCollector) RecordError(_ context.Context, _ string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, errorType)
}
