package metrics

import "context"

// NoopCollector discards everything. It is the default when no collector is configured.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (n *NoopCollector) RecordRequest(ctx context.Context, operation string, backend string, status string, durationMs int64) {
}

func (n *NoopCollector) RecordAttempt(ctx context.Context, operation string, backend string, ok bool) {
}

func (n *NoopCollector) RecordError(ctx context.Context, operation string, errorType string) {
}
