// Package audit appends a Parquet record for every scan the service
// performs. Records carry a hash of the scanned text, never the text or the
// matched values themselves, so the audit trail cannot leak what it audits.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// Config contains audit trail configuration
type Config struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"`
}

// Record is one audited detection event.
type Record struct {
	Timestamp  int64   `parquet:"timestamp" json:"timestamp"`
	RequestID  string  `parquet:"request_id" json:"request_id"`
	TextHash   string  `parquet:"text_hash" json:"text_hash"`
	TextLen    int64   `parquet:"text_len" json:"text_len"`
	Kind       string  `parquet:"kind" json:"kind"`
	Severity   string  `parquet:"severity" json:"severity"`
	Source     string  `parquet:"source" json:"source"`
	Confidence float64 `parquet:"confidence" json:"confidence"`
}

// Writer buffers audit records and flushes them to a Parquet file. A
// disabled writer accepts records and drops them, so callers never branch.
type Writer struct {
	config *Config
	logger *zap.Logger

	mu      sync.Mutex
	file    *os.File
	writer  *parquet.Writer
	pending int
}

// NewWriter opens the audit file for appending. Disabled configs return a
// writer whose methods are no-ops.
func NewWriter(config *Config, logger *zap.Logger) (*Writer, error) {
	w := &Writer{config: config, logger: logger}
	if !config.Enabled {
		return w, nil
	}

	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	w.file = file
	w.writer = parquet.NewWriter(file)

	logger.Info("Audit trail initialized",
		zap.String("path", config.Path),
		zap.Int("buffer_size", config.BufferSize))

	return w, nil
}

// HashText digests text for the audit trail.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Append buffers one record. The write is flushed once the buffer fills.
func (w *Writer) Append(record Record) error {
	if w.writer == nil {
		return nil
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixMilli()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(&record); err != nil {
		w.logger.Error("Failed to write audit record", zap.Error(err))
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	w.pending++
	if w.config.BufferSize > 0 && w.pending >= w.config.BufferSize {
		return w.flushLocked()
	}
	return nil
}

// Flush forces buffered records onto disk.
func (w *Writer) Flush() error {
	if w.writer == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if err := w.writer.Flush(); err != nil {
		w.logger.Error("Failed to flush audit records", zap.Error(err))
		return fmt.Errorf("failed to flush audit records: %w", err)
	}
	w.logger.Debug("Audit records flushed", zap.Int("records", w.pending))
	w.pending = 0
	return nil
}

// Close finalizes the Parquet footer and closes the file.
func (w *Writer) Close() error {
	if w.writer == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close audit writer: %w", err)
	}
	return w.file.Close()
}
