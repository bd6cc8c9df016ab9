// Package gptkit wires completions, embeddings, classification, metrics and
// tracing from a single configuration
package gptkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dan-solli/gptkit/pkg/classifier"
	"github.com/dan-solli/gptkit/pkg/config"
	"github.com/dan-solli/gptkit/pkg/embeddings"
	"github.com/dan-solli/gptkit/pkg/llm"
	"github.com/dan-solli/gptkit/pkg/metrics"
	"github.com/dan-solli/gptkit/pkg/trace"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrTracesUnavailable is returned by RecentTraces when traces are not stored in SQLite.
var ErrTracesUnavailable = errors.New("trace history requires trace.sqlite")

// Kit is the main entry point: one Completer shared by every session,
// embedder and classifier it hands out.
type Kit struct {
	config    config.Config
	completer *llm.Completer
	metrics   *metrics.MetricsCollector
	tracer    trace.Exporter
	logger    *slog.Logger
}

// New creates a Kit from cfg. Trace files or databases named in cfg are opened here
// and released by Close.
func New(cfg config.Config) (*Kit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tracer, err := newExporter(cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace exporter: %w", err)
	}

	collector := metrics.NewCollector()
	completer := llm.NewCompleter(cfg.LLM()).
		WithMetrics(collector).
		WithTraceExporter(tracer)

	return &Kit{
		config:    cfg,
		completer: completer,
		metrics:   collector,
		tracer:    tracer,
	}, nil
}

func newExporter(cfg config.Trace) (trace.Exporter, error) {
	switch {
	case cfg.SQLite != "":
		return trace.NewSQLiteExporter(cfg.SQLite)
	case cfg.File != "":
		var opts []trace.FileExporterOption
		if cfg.MaxSizeBytes > 0 {
			opts = append(opts, trace.WithMaxSize(cfg.MaxSizeBytes))
		}
		return trace.NewFileExporter(cfg.File, opts...)
	default:
		return trace.NewNoopExporter(), nil
	}
}

// WithLogger sets the logger for the Kit and everything it creates afterwards.
// A nil logger disables logging.
func (k *Kit) WithLogger(logger *slog.Logger) *Kit {
	k.logger = logger
	k.completer.WithLogger(logger)
	return k
}

// Config returns the configuration the Kit was built from.
func (k *Kit) Config() config.Config {
	return k.config
}

// Completer returns the shared Completer.
func (k *Kit) Completer() *llm.Completer {
	return k.completer
}

// Session returns a completion session for backend using the configured credentials.
func (k *Kit) Session(backend llm.Backend) *llm.Session {
	key, org := k.config.Credentials(backend)
	return k.completer.Session(key, org, llm.WithBackend(backend))
}

// Embedder returns an embeddings client for backend using the configured model.
func (k *Kit) Embedder(backend llm.Backend) *embeddings.Client {
	key, org := k.config.Credentials(backend)
	return embeddings.NewClient(k.completer, key, org).
		WithBackend(backend).
		WithModel(k.config.EmbeddingModel).
		WithLogger(k.logger)
}

// Classifier returns a classifier choosing among labels on backend.
func (k *Kit) Classifier(backend llm.Backend, labels []string) *classifier.Classifier {
	return classifier.New(k.Session(backend), labels).WithLogger(k.logger)
}

// Metrics returns the Prometheus collector fed by every call.
func (k *Kit) Metrics() *metrics.MetricsCollector {
	return k.metrics
}

// MetricsHandler serves the collector's registry in the Prometheus exposition format.
func (k *Kit) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(k.metrics.Registry(), promhttp.HandlerOpts{})
}

// RecentTraces returns up to limit stored traces, newest first.
func (k *Kit) RecentTraces(ctx context.Context, limit int) ([]trace.TraceRecord, error) {
	store, ok := k.tracer.(*trace.SQLiteExporter)
	if !ok {
		return nil, ErrTracesUnavailable
	}
	return store.Recent(ctx, limit)
}

// Close releases the trace exporter.
func (k *Kit) Close() error {
	return k.tracer.Close()
}
