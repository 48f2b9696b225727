// Package alertjson writes degenerate-frame alerts to a JSON lines file.
package alertjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"flametrace/internal/logger"
	"flametrace/pkg/models"
)

// Writer outputs alerts to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	written int
}

// NewWriter truncates path and writes alerts into it.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	logger.Infof("Alert JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// WriteAlerts writes a batch of alerts.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, alert := range alerts {
		if alert == nil {
			continue
		}
		if err := w.encoder.Encode(alert); err != nil {
			return fmt.Errorf("failed to encode alert %s: %w", alert.AlertID, err)
		}
		w.written++
	}
	return nil
}

// Written returns the number of alerts written so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		if w.written > 0 {
			logger.Infof("Alert JSON writer closed after %d alerts", w.written)
		}
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
