// Package framejson appends frame summaries to a JSON lines file.
package framejson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"flametrace/internal/logger"
	"flametrace/pkg/models"
)

// Writer outputs frame summaries, one JSON object per line.
type Writer struct {
	out     io.Writer
	closer  io.Closer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter opens path for appending, creating parent directories as needed.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Frame JSON writer initialized: %s", path)
	w := NewStreamWriter(f)
	w.closer = f
	return w, nil
}

// NewStreamWriter writes to out without taking ownership of it.
func NewStreamWriter(out io.Writer) *Writer {
	return &Writer{out: out, encoder: json.NewEncoder(out)}
}

// WriteFrames writes a batch of frame summaries.
func (w *Writer) WriteFrames(frames []models.FrameSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range frames {
		if err := w.encoder.Encode(&frames[i]); err != nil {
			return fmt.Errorf("failed to encode frame summary: %w", err)
		}
	}
	return nil
}

// Close closes the output file if the writer opened it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closer != nil {
		err := w.closer.Close()
		w.closer = nil
		return err
	}
	return nil
}
