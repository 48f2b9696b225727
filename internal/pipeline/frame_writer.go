package pipeline

import (
	"context"

	"flametrace/pkg/models"
)

// FrameWriter writes per-frame query summaries.
type FrameWriter interface {
	WriteFrames(frames []models.FrameSummary) error
	Close() error
}

// Source yields serialized trace documents. A nil payload with a nil error means
// nothing arrived before the source's own timeout.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}
