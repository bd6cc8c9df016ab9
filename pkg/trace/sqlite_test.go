package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteExporter_ExportAndRecent(t *testing.T) {
	exporter, err := NewSQLiteExporter(":memory:")
	require.NoError(t, err)
	defer exporter.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := NewRecord("chat_completion", "openai", "gpt-4o-mini", base.Add(time.Duration(i)*time.Second))
		record.DurationMs = int64(100 * (i + 1))
		record.Status = "success"
		record.Attempts = 1
		record.Spans = append(record.Spans, SpanRecord{Name: "attempt-1", DurationMs: record.DurationMs, OK: true})
		require.NoError(t, exporter.Export(ctx, record))
	}

	failed := NewRecord("parsed_completion", "azure", "gpt-4o", base.Add(10*time.Second))
	failed.Status = "error"
	failed.Attempts = 3
	failed.ErrorType = "rate_limit"
	require.NoError(t, exporter.Export(ctx, failed))

	recent, err := exporter.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, failed.OperationID, recent[0].OperationID)
	assert.Equal(t, "rate_limit", recent[0].ErrorType)
	assert.Equal(t, 3, recent[0].Attempts)
	assert.True(t, failed.Timestamp.Equal(recent[0].Timestamp))

	assert.Equal(t, "chat_completion", recent[1].Operation)
	assert.Equal(t, int64(300), recent[1].DurationMs)
	require.Len(t, recent[1].Spans, 1)
	assert.True(t, recent[1].Spans[0].OK)
}

func TestSQLiteExporter_ReexportReplaces(t *testing.T) {
	exporter, err := NewSQLiteExporter(":memory:")
	require.NoError(t, err)
	defer exporter.Close()

	ctx := context.Background()
	record := NewRecord("embeddings", "openai", "text-embedding-3-small", time.Now())
	record.Status = "error"
	require.NoError(t, exporter.Export(ctx, record))

	record.Status = "success"
	require.NoError(t, exporter.Export(ctx, record))

	recent, err := exporter.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "success", recent[0].Status)
}

func TestSQLiteExporter_PersistsToFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	ctx := context.Background()

	exporter, err := NewSQLiteExporter(dbPath)
	require.NoError(t, err)
	record := NewRecord("chat_completion", "custom_url", "llama3", time.Now())
	record.Status = "success"
	require.NoError(t, exporter.Export(ctx, record))
	require.NoError(t, exporter.Close())

	reopened, err := NewSQLiteExporter(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "custom_url", recent[0].Backend)
}
