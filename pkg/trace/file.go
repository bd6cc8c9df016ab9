package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeBytes    = 10 * 1024 * 1024
	defaultMaxRotatedFiles = 5
)

// ErrExporterClosed is returned by Export after Close.
var ErrExporterClosed = errors.New("exporter closed")

// FileExporter writes records as JSON Lines and rotates the file by size.
// Rotated files are named <path>.1 (newest) through <path>.N (oldest).
type FileExporter struct {
	filePath        string
	maxSizeBytes    int64
	maxRotatedFiles int

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	closed  bool
}

// FileExporterOption configures a FileExporter.
type FileExporterOption func(*FileExporter)

// WithMaxSize sets the maximum file size before rotation (default: 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(fe *FileExporter) {
		fe.maxSizeBytes = bytes
	}
}

// WithMaxRotatedFiles sets how many rotated files to keep (default: 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(fe *FileExporter) {
		fe.maxRotatedFiles = count
	}
}

// NewFileExporter opens (or creates) filePath for appending.
// An empty path yields a NoopExporter.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return NewNoopExporter(), nil
	}

	fe := &FileExporter{
		filePath:        filePath,
		maxSizeBytes:    defaultMaxSizeBytes,
		maxRotatedFiles: defaultMaxRotatedFiles,
	}
	for _, opt := range opts {
		opt(fe)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	if err := fe.open(); err != nil {
		return nil, err
	}
	return fe, nil
}

func (fe *FileExporter) open() error {
	file, err := os.OpenFile(fe.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	fe.file = file
	fe.encoder = json.NewEncoder(file)
	return nil
}

// Export appends record as one JSON line, then rotates if the size limit is reached.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return ErrExporterClosed
	}

	if err := fe.encoder.Encode(record); err != nil {
		return fmt.Errorf("encode trace record: %w", err)
	}

	if err := fe.rotateIfNeeded(); err != nil {
		return fmt.Errorf("rotate trace file: %w", err)
	}
	return nil
}

// Close syncs and closes the trace file. Calling Close twice is safe.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true

	if err := fe.file.Sync(); err != nil {
		fe.file.Close()
		return fmt.Errorf("sync trace file: %w", err)
	}
	return fe.file.Close()
}

// rotateIfNeeded must be called with fe.mu held.
func (fe *FileExporter) rotateIfNeeded() error {
	info, err := fe.file.Stat()
	if err != nil {
		return fmt.Errorf("stat trace file: %w", err)
	}
	if info.Size() < fe.maxSizeBytes {
		return nil
	}

	if err := fe.file.Close(); err != nil {
		return fmt.Errorf("close trace file for rotation: %w", err)
	}
	if err := fe.shift(); err != nil {
		return err
	}
	return fe.open()
}

// shift drops the oldest rotated file and renames the rest one slot up.
func (fe *FileExporter) shift() error {
	rotated := func(i int) string { return fmt.Sprintf("%s.%d", fe.filePath, i) }

	if err := os.Remove(rotated(fe.maxRotatedFiles)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest rotated file: %w", err)
	}

	for i := fe.maxRotatedFiles - 1; i >= 1; i-- {
		if err := os.Rename(rotated(i), rotated(i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shift rotated file %d: %w", i, err)
		}
	}

	if err := os.Rename(fe.filePath, rotated(1)); err != nil {
		return fmt.Errorf("rotate current file: %w", err)
	}
	return nil
}
