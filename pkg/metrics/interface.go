// Package metrics records counters and latencies for LLM provider calls.
package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op collector.
// Label values are operation names, backend names and error classes only; never
// prompts, completions or credentials.
type Collector interface {
	// RecordRequest records the outcome of one entry-point call, retries included.
	RecordRequest(ctx context.Context, operation string, backend string, status string, durationMs int64)

	// RecordAttempt records a single provider attempt within a call.
	RecordAttempt(ctx context.Context, operation string, backend string, ok bool)

	// RecordError records a classified error for a failed call.
	RecordError(ctx context.Context, operation string, errorType string)
}

// Status values used with RecordRequest.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
