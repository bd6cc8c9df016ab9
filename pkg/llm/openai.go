package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/dan-solli/gptkit/pkg/metrics"
	"github.com/dan-solli/gptkit/pkg/retry"
	"github.com/dan-solli/gptkit/pkg/trace"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

// Operation names used in logs, metrics and traces.
const (
	OperationChatCompletion   = "chat_completion"
	OperationParsedCompletion = "parsed_completion"
	OperationEmbeddings       = "embeddings"
)

// greedyTemperature is sent as the sampling temperature on every completion.
// go-openai drops a zero temperature from the request body (omitempty), which would
// leave the API default of 1 in effect; the smallest positive float32 decodes greedily.
const greedyTemperature = math.SmallestNonzeroFloat32

// Completer issues chat completions against the OpenAI-family backends.
// It holds no per-call state and is safe for concurrent use once configured.
// The With* setters are meant for setup and are not synchronized.
type Completer struct {
	config   Config
	resolver Resolver
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  metrics.Collector
	tracer   trace.Exporter
}

// NewCompleter creates a Completer with cfg's defaults applied and credential
// functions from NewResolver.
func NewCompleter(cfg Config) *Completer {
	cfg = cfg.withDefaults()

	c := &Completer{
		config:   cfg,
		resolver: NewResolver(cfg),
		metrics:  metrics.NewNoopCollector(),
		tracer:   trace.NewNoopExporter(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Config returns the effective configuration.
func (c *Completer) Config() Config {
	return c.config
}

// WithResolver replaces the credential functions.
func (c *Completer) WithResolver(r Resolver) *Completer {
	c.resolver = r
	return c
}

// WithLogger sets the logger. A nil logger disables logging.
func (c *Completer) WithLogger(logger *slog.Logger) *Completer {
	c.logger = logger
	if logger != nil {
		logger.Debug("llm completer configured",
			"default_model", c.config.DefaultModel,
			"max_attempts", c.config.MaxAttempts,
			"custom_base_url", c.config.BaseURL != "",
			"azure_endpoint_set", c.config.AzureEndpoint != "",
			"requests_per_second", c.config.RequestsPerSecond)
	}
	return c
}

// WithMetrics sets the metrics collector. nil restores the no-op collector.
func (c *Completer) WithMetrics(m metrics.Collector) *Completer {
	if m == nil {
		m = metrics.NewNoopCollector()
	}
	c.metrics = m
	return c
}

// WithTraceExporter sets where call traces go. nil restores the no-op exporter.
func (c *Completer) WithTraceExporter(e trace.Exporter) *Completer {
	if e == nil {
		e = trace.NewNoopExporter()
	}
	c.tracer = e
	return c
}

func (c *Completer) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// GetChatCompletion sends messages to the selected backend and returns the raw
// provider response. The request always uses greedy decoding. WithJSONResponse
// adds a JSON-object response format on BackendOpenAI only.
//
// An unknown backend fails with ErrInvalidBackend before any credential function
// or network call. Provider errors are retried per Config.MaxAttempts and the last
// one is returned.
func (c *Completer) GetChatCompletion(ctx context.Context, messages []Message, key, org string, opts ...CallOption) (Completion, error) {
	o := c.resolveOptions(opts)

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: greedyTemperature,
	}
	if o.jsonResponse && o.backend == BackendOpenAI {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return Call(ctx, c, OperationChatCompletion, key, org, opts,
		func(ctx context.Context, client ChatClient, _ string) (Completion, error) {
			return client.CreateChatCompletion(ctx, req)
		})
}

// GetParsedCompletion requests output constrained to the JSON Schema of out's
// element type and decodes the primary choice into out, which must be a non-nil
// pointer. out is only written on success.
//
// A refusal returns ErrRefusal. No choices returns ErrEmptyResponse and content that
// fails validation returns ErrSchemaMismatch; both are retried like provider errors.
func (c *Completer) GetParsedCompletion(ctx context.Context, messages []Message, out any, key, org string, opts ...CallOption) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("parsed completion target must be a non-nil pointer, got %T", out)
	}
	elemType := target.Elem().Type()

	schema, err := jsonschema.GenerateSchemaForType(reflect.New(elemType).Elem().Interface())
	if err != nil {
		return fmt.Errorf("generate schema for %s: %w", elemType, err)
	}

	o := c.resolveOptions(opts)
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: greedyTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName(elemType),
				Schema: schema,
				Strict: true,
			},
		},
	}

	parsed, err := Call(ctx, c, OperationParsedCompletion, key, org, opts,
		func(ctx context.Context, client ChatClient, _ string) (reflect.Value, error) {
			resp, err := client.CreateChatCompletion(ctx, req)
			if err != nil {
				return reflect.Value{}, err
			}
			return decodeParsed(resp, schema, elemType)
		})
	if err != nil {
		return err
	}

	target.Elem().Set(parsed.Elem())
	return nil
}

// decodeParsed validates the primary choice against schema and decodes it into a
// new value of type t, returned as a pointer.
func decodeParsed(resp openai.ChatCompletionResponse, schema *jsonschema.Definition, t reflect.Type) (reflect.Value, error) {
	if len(resp.Choices) == 0 {
		return reflect.Value{}, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrRefusal, msg.Refusal)
	}

	v := reflect.New(t)
	if err := schema.Unmarshal(msg.Content, v.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return v, nil
}

var schemaNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// schemaName derives a response_format name from a Go type.
func schemaName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := schemaNameChars.ReplaceAllString(t.Name(), "_")
	if name == "" {
		return "response"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// Call runs op against a freshly resolved client handle for the backend selected
// by opts, with the Completer's retry policy, rate limit, logging, metrics and
// tracing. op receives the effective model. An unknown backend fails before op or
// any credential function runs.
func Call[T any](ctx context.Context, c *Completer, operation, key, org string, opts []CallOption,
	op func(ctx context.Context, client ChatClient, model string) (T, error)) (T, error) {
	var zero T
	o := c.resolveOptions(opts)

	client, err := c.resolver.Resolve(o.backend, key, org)
	if err != nil {
		return zero, err
	}

	logger := c.log().With("operation", operation, "backend", string(o.backend), "model", o.model)
	ct := newCallTrace(operation, o.backend, o.model)

	policy := retry.Policy{
		MaxAttempts: c.config.MaxAttempts,
		Delay:       c.config.RetryDelay,
		Retryable:   IsRetryable,
		OnRetry: func(attempt int, err error) {
			logger.Warn("llm attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", c.config.MaxAttempts,
				"error_type", ClassifyError(err),
				"error", err)
		},
	}

	result, err := retry.Do(ctx, policy, func(ctx context.Context) (T, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limiter: %w", err)
			}
		}

		timer := ct.startAttempt()
		res, err := op(ctx, client, o.model)
		timer.finish(err)
		c.metrics.RecordAttempt(ctx, operation, string(o.backend), err == nil)
		return res, err
	})

	c.finish(ctx, logger, ct, operation, o.backend, err)
	return result, err
}

func (c *Completer) finish(ctx context.Context, logger *slog.Logger, ct *callTrace, operation string, backend Backend, err error) {
	record := ct.complete(err)

	if err != nil {
		c.metrics.RecordRequest(ctx, operation, string(backend), metrics.StatusError, record.DurationMs)
		c.metrics.RecordError(ctx, operation, record.ErrorType)
		logger.Error("llm call failed",
			"attempts", record.Attempts,
			"error_type", record.ErrorType,
			"duration_ms", record.DurationMs,
			"error", err)
	} else {
		c.metrics.RecordRequest(ctx, operation, string(backend), metrics.StatusSuccess, record.DurationMs)
		logger.Debug("llm call completed",
			"attempts", record.Attempts,
			"duration_ms", record.DurationMs)
	}

	// Export runs on a context that outlives a cancelled call so failures are still recorded.
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if exportErr := c.tracer.Export(exportCtx, record); exportErr != nil && !errors.Is(exportErr, trace.ErrExporterClosed) {
		logger.Warn("trace export failed", "error", exportErr)
	}
}

var defaultCompleter = sync.OnceValue(func() *Completer {
	return NewCompleter(Config{})
})

// GetChatCompletion calls (*Completer).GetChatCompletion on a Completer with the
// default Config.
func GetChatCompletion(ctx context.Context, messages []Message, key, org string, opts ...CallOption) (Completion, error) {
	return defaultCompleter().GetChatCompletion(ctx, messages, key, org, opts...)
}

// GetParsedCompletion returns a T decoded from a schema-constrained completion,
// using a Completer with the default Config.
func GetParsedCompletion[T any](ctx context.Context, messages []Message, key, org string, opts ...CallOption) (T, error) {
	return ParsedCompletion[T](ctx, defaultCompleter(), messages, key, org, opts...)
}

// ParsedCompletion returns a T decoded from a schema-constrained completion made by c.
func ParsedCompletion[T any](ctx context.Context, c *Completer, messages []Message, key, org string, opts ...CallOption) (T, error) {
	var out T
	if err := c.GetParsedCompletion(ctx, messages, &out, key, org, opts...); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
