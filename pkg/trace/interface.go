// Package trace exports sanitized records of LLM provider calls.
package trace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Exporter defines the interface for exporting call traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// TraceRecord describes one entry-point call (chat completion, parsed completion or
// embeddings), including every provider attempt made for it.
// It never carries prompts, completions, schemas or credentials.
type TraceRecord struct {
	// Timestamp is the call start time
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this call (for correlation)
	OperationID string `json:"operationId"`

	// Operation is "chat_completion", "parsed_completion" or "embeddings"
	Operation string `json:"operation"`

	Backend string `json:"backend"`
	Model   string `json:"model"`

	// DurationMs is the total call duration in milliseconds, retries included
	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// Attempts is the number of provider attempts made
	Attempts int `json:"attempts"`

	// ErrorType classifies the final error (if Status == "error")
	ErrorType string `json:"errorType,omitempty"`

	// Spans holds one entry per attempt, in order
	Spans []SpanRecord `json:"spans"`
}

// SpanRecord represents a single provider attempt.
type SpanRecord struct {
	// Name is "attempt-1", "attempt-2", ...
	Name string `json:"name"`

	DurationMs int64 `json:"durationMs"`

	// OK indicates success (true) or failure (false)
	OK bool `json:"ok"`

	// ErrorType classifies the attempt error (if OK == false)
	ErrorType string `json:"errorType,omitempty"`
}

// NewRecord starts a record for operation with a fresh operation ID.
func NewRecord(operation, backend, model string, start time.Time) *TraceRecord {
	return &TraceRecord{
		Timestamp:   start,
		OperationID: uuid.NewString(),
		Operation:   operation,
		Backend:     backend,
		Model:       model,
		Spans:       make([]SpanRecord, 0, 1),
	}
}
