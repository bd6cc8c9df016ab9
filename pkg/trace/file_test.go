package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileExporter_BasicExport(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}

	record := &TraceRecord{
		Timestamp:   time.Date(2026, 1, 14, 10, 30, 0, 0, time.UTC),
		OperationID: "test-op-1",
		Operation:   "chat_completion",
		Backend:     "openai",
		Model:       "gpt-4o-mini",
		DurationMs:  1234,
		Status:      "success",
		Attempts:    2,
		Spans: []SpanRecord{
			{Name: "attempt-1", DurationMs: 600, OK: false, ErrorType: "server"},
			{Name: "attempt-2", DurationMs: 634, OK: true},
		},
	}

	if err := exporter.Export(context.Background(), record); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("Read trace file failed: %v", err)
	}

	var readRecord TraceRecord
	if err := json.Unmarshal(data, &readRecord); err != nil {
		t.Fatalf("Unmarshal trace record failed: %v", err)
	}

	if readRecord.OperationID != "test-op-1" {
		t.Errorf("Expected operationId 'test-op-1', got '%s'", readRecord.OperationID)
	}
	if readRecord.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", readRecord.Attempts)
	}
	if len(readRecord.Spans) != 2 {
		t.Errorf("Expected 2 spans, got %d", len(readRecord.Spans))
	}
	if readRecord.Spans[0].ErrorType != "server" {
		t.Errorf("Expected first span errorType 'server', got '%s'", readRecord.Spans[0].ErrorType)
	}
}

func TestNewFileExporter_EmptyPathIsNoop(t *testing.T) {
	exporter, err := NewFileExporter("")
	if err != nil {
		t.Fatalf("NewFileExporter(\"\") failed: %v", err)
	}
	if _, ok := exporter.(*NoopExporter); !ok {
		t.Fatalf("Expected *NoopExporter, got %T", exporter)
	}

	if err := exporter.Export(context.Background(), NewRecord("smoke", "openai", "m", time.Now())); err != nil {
		t.Fatalf("Export on noop exporter should succeed, got: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close on noop exporter should succeed, got: %v", err)
	}
}

func TestFileExporter_MultipleRecords(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		record := NewRecord("embeddings", "azure", "text-embedding-3-small", time.Now())
		record.DurationMs = int64(i * 100)
		record.Status = "success"
		if err := exporter.Export(context.Background(), record); err != nil {
			t.Fatalf("Export %d failed: %v", i, err)
		}
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	file, err := os.Open(tracePath)
	if err != nil {
		t.Fatalf("Open trace file failed: %v", err)
	}
	defer file.Close()

	lines := 0
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r TraceRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		seen[r.OperationID] = true
		lines++
	}

	if lines != 3 {
		t.Errorf("Expected 3 lines, got %d", lines)
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct operation IDs, got %d", len(seen))
	}
}

func TestFileExporter_Rotation(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "traces.jsonl")

	exporter, err := NewFileExporter(tracePath, WithMaxSize(200), WithMaxRotatedFiles(2))
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		record := NewRecord("chat_completion", "openai", "gpt-4o-mini", time.Now())
		record.Status = "success"
		if err := exporter.Export(context.Background(), record); err != nil {
			t.Fatalf("Export %d failed: %v", i, err)
		}
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var rotated []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "traces.jsonl.") {
			rotated = append(rotated, e.Name())
		}
	}

	if len(rotated) != 2 {
		t.Errorf("Expected 2 rotated files, got %d: %v", len(rotated), rotated)
	}
	if _, err := os.Stat(fmt.Sprintf("%s.3", tracePath)); !os.IsNotExist(err) {
		t.Errorf("Expected %s.3 to be pruned", tracePath)
	}
}

func TestFileExporter_ExportAfterClose(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	err = exporter.Export(context.Background(), NewRecord("chat_completion", "openai", "m", time.Now()))
	if !errors.Is(err, ErrExporterClosed) {
		t.Errorf("Expected ErrExporterClosed, got %v", err)
	}
}

func TestTraceRecord_NoSensitiveFields(t *testing.T) {
	record := NewRecord("parsed_completion", "openai", "gpt-4o-mini", time.Now())
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, forbidden := range []string{"content", "messages", "apiKey", "prompt", "schema"} {
		if strings.Contains(string(data), forbidden) {
			t.Errorf("trace record JSON contains forbidden field %q: %s", forbidden, data)
		}
	}
}
