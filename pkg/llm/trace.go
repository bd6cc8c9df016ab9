package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/dan-solli/gptkit/pkg/trace"
)

// callTrace accumulates per-attempt spans for one entry-point call.
type callTrace struct {
	mu     sync.Mutex
	record *trace.TraceRecord
	start  time.Time
}

func newCallTrace(operation string, backend Backend, model string) *callTrace {
	start := time.Now()
	return &callTrace{
		record: trace.NewRecord(operation, string(backend), model, start),
		start:  start,
	}
}

// attemptTimer measures one provider attempt.
type attemptTimer struct {
	trace *callTrace
	start time.Time
}

func (t *callTrace) startAttempt() *attemptTimer {
	return &attemptTimer{trace: t, start: time.Now()}
}

// finish records the attempt as a span and returns its duration.
func (at *attemptTimer) finish(err error) time.Duration {
	elapsed := time.Since(at.start)

	at.trace.mu.Lock()
	defer at.trace.mu.Unlock()

	rec := at.trace.record
	rec.Attempts++
	span := trace.SpanRecord{
		Name:       fmt.Sprintf("attempt-%d", rec.Attempts),
		DurationMs: elapsed.Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	rec.Spans = append(rec.Spans, span)
	return elapsed
}

// complete stamps the final outcome and returns the finished record.
func (t *callTrace) complete(err error) *trace.TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.record.DurationMs = time.Since(t.start).Milliseconds()
	t.record.Status = "success"
	if err != nil {
		t.record.Status = "error"
		t.record.ErrorType = ClassifyError(err)
	}
	return t.record
}
