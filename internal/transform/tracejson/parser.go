// Package tracejson decodes parsed call-tree documents into model events.
package tracejson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flametrace/internal/logger"
	"flametrace/pkg/models"
)

// Document is the on-wire form of one parsed log.
type Document struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Events []*models.Event `json:"events"`
}

// Parse decodes a trace document. A bare JSON array is accepted as the event list.
// Category labels are checked against the closed set and negative times are rejected.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty trace document")
	}

	var doc Document
	if data[0] == '[' {
		if err := json.Unmarshal(data, &doc.Events); err != nil {
			return nil, fmt.Errorf("decode event list: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode trace document: %w", err)
	}

	count, err := validate(doc.Events)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = doc.Name
	}
	if count == 0 {
		logger.Warnf("Trace %q has no events", doc.ID)
	}
	return &doc, nil
}

// LoadFile reads and parses a trace document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.ID == "" {
		doc.ID = path
	}
	return doc, nil
}

func validate(roots []*models.Event) (int, error) {
	count := 0
	stack := append([]*models.Event(nil), roots...)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e == nil {
			continue
		}
		count++
		if e.Timestamp < 0 {
			return count, fmt.Errorf("event %q: negative timestamp %d", e.Text, e.Timestamp)
		}
		if e.Duration.Total < 0 || e.Duration.Self < 0 {
			return count, fmt.Errorf("event %q: negative duration %+v", e.Text, e.Duration)
		}
		stack = append(stack, e.Children...)
	}
	return count, nil
}
